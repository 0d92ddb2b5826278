package models

// User is a participant profile. Account provisioning belongs to the
// external auth provider; this service only reads profiles.
type User struct {
	ID           string `db:"id" json:"id"`
	Email        string `db:"email" json:"email"`
	Name         string `db:"name" json:"name"`
	ProfileImage string `db:"profile_image" json:"profileImage,omitempty"`
}
