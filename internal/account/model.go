package account

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/blood-bank/internal/authz"
	"github.com/hackgods/blood-bank/internal/bloodgroup"
)

type Account struct {
	ID            uuid.UUID  `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Phone         string     `json:"phone_number"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	Address       string     `json:"address"`
	Role          authz.Role `json:"role"`
	Active        bool       `json:"is_active"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// FullName falls back to the username when no name is on file.
func (a *Account) FullName() string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name == "" {
		return a.Username
	}
	return name
}

func (a *Account) Actor() authz.Actor {
	return authz.Actor{AccountID: a.ID, Role: a.Role}
}

type Profile struct {
	AccountID         uuid.UUID        `json:"account_id"`
	BloodGroup        bloodgroup.Group `json:"blood_group,omitempty"`
	MedicalConditions string           `json:"medical_conditions"`
	EmergencyContact  string           `json:"emergency_contact"`
}

// Member is an account joined with its profile, as listed in the back office.
type Member struct {
	Account
	BloodGroup bloodgroup.Group `json:"blood_group,omitempty"`
}

// Contact is what other lifecycles need to address an account.
type Contact struct {
	AccountID  uuid.UUID
	Name       string
	Email      string
	BloodGroup bloodgroup.Group
}

type ListFilter struct {
	Role       authz.Role
	BloodGroup bloodgroup.Group
	Active     *bool
	// Search matches first name, last name, email or phone, case-insensitively.
	Search string
	Page   int
	Size   int
}

type RegisterInput struct {
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       string     `json:"phone_number"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Address     string     `json:"address"`
	Role        authz.Role `json:"role"`
}

// ProfileUpdate carries the editable fields. Nil pointers are left unchanged.
type ProfileUpdate struct {
	FirstName         *string           `json:"first_name,omitempty"`
	LastName          *string           `json:"last_name,omitempty"`
	Phone             *string           `json:"phone_number,omitempty"`
	DateOfBirth       *time.Time        `json:"date_of_birth,omitempty"`
	Address           *string           `json:"address,omitempty"`
	BloodGroup        *bloodgroup.Group `json:"blood_group,omitempty"`
	MedicalConditions *string           `json:"medical_conditions,omitempty"`
	EmergencyContact  *string           `json:"emergency_contact,omitempty"`
}
