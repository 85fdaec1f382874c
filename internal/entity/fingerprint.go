package entity

import "time"

// Fingerprint identifies the request that issued a token.
type Fingerprint struct {
	URL       string    `bson:"url" json:"url"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Agent     string    `bson:"agent" json:"agent"`
	IP        string    `bson:"ip" json:"ip"`
	Country   string    `bson:"country,omitempty" json:"country,omitempty"`
}
