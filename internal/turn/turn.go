// Package turn holds the record of one listen-parse-act iteration as it is
// published to the event bus and written to history.
package turn

import "time"

type Record struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"at"`
	Transcript string    `json:"transcript"`
	Reply      string    `json:"reply"`
	Intent     string    `json:"intent"`
	Failure    string    `json:"failure,omitempty"`
}

// IntentExit marks turns that ended the session.
const IntentExit = "exit"
