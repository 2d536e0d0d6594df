package types

import "time"

// Instance represents an EC2 instance
type Instance struct {
	ID         string
	Name       string
	PrivateIP  string
	PublicIP   string
	State      string
	Type       string
	AZ         string
	ASG        string
	LaunchTime time.Time
}
