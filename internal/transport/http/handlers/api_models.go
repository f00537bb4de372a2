package handlers

import (
	"time"

	"github.com/solentra/account-service/internal/core/domain"
)

// RequestEnvelope is the outer shape of every POST body: the payload sits
// under a single "data" key, matching the wire contract of existing clients.
type RequestEnvelope[T any] struct {
	Data T `json:"data" binding:"required"`
}

// RegistrationRequest defines the payload for the registration endpoint.
type RegistrationRequest struct {
	FirstName    string  `json:"firstName" binding:"required"`
	MiddleName   *string `json:"middleName"`
	LastName     string  `json:"lastName" binding:"required"`
	Email        string  `json:"emailAddress" binding:"required"`
	Password     string  `json:"userPassword" binding:"required"`
	CompanyName  *string `json:"companyName"`
	MobileNumber *string `json:"mobileNumber"`
	Address      *string `json:"address"`
	Country      *string `json:"country"`
	RegionCode   *string `json:"regionCode"`
	CountryID    *string `json:"countryId"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"emailAddress" binding:"required"`
	Password string `json:"userPassword" binding:"required"`
}

// VerifyEmailRequest carries the hex-encoded link token. The field keeps
// its historical wire name.
type VerifyEmailRequest struct {
	Token string `json:"emailAddress" binding:"required"`
}

// ChangePasswordRequest defines the payload for the change-password endpoint.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ForgotPasswordRequest defines the payload for the forgot-password endpoint.
type ForgotPasswordRequest struct {
	Email string `json:"emailAddress" binding:"required"`
}

// ResetPasswordRequest carries the hex-encoded reset token and the new
// password. The token field keeps its historical wire name.
type ResetPasswordRequest struct {
	Token       string `json:"emailAddress" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// UpdateProfileRequest defines the payload for the update-profile endpoint.
type UpdateProfileRequest struct {
	FirstName    string  `json:"firstName" binding:"required"`
	MiddleName   *string `json:"middleName"`
	LastName     string  `json:"lastName" binding:"required"`
	CompanyName  *string `json:"companyName"`
	MobileNumber *string `json:"mobileNumber"`
	Address      string  `json:"address" binding:"required"`
	Country      *string `json:"country"`
	RegionCode   *string `json:"regionCode"`
	CountryID    *string `json:"countryId"`
}

// UploadProfilePictureRequest carries a base64 image, optionally with a
// data-URI prefix.
type UploadProfilePictureRequest struct {
	ProfilePic string `json:"profilePic" binding:"required"`
}

// CountryView is the resolved country reference in user payloads.
type CountryView struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// UserView is the account representation returned to clients. The password
// hash is never part of it.
type UserView struct {
	ID              string       `json:"id"`
	FirstName       string       `json:"firstName"`
	MiddleName      *string      `json:"middleName,omitempty"`
	LastName        string       `json:"lastName"`
	Email           string       `json:"emailAddress"`
	CompanyName     *string      `json:"companyName,omitempty"`
	MobileNumber    *string      `json:"mobileNumber,omitempty"`
	Address         *string      `json:"address,omitempty"`
	Country         *string      `json:"country,omitempty"`
	RegionCode      *string      `json:"regionCode,omitempty"`
	CountryRef      *CountryView `json:"countryId,omitempty"`
	IsEmailVerified bool         `json:"isEmailVerified"`
	IsActive        bool         `json:"isActive"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// LoginResult pairs the user view with the minted session token.
type LoginResult struct {
	User  UserView `json:"user"`
	Token string   `json:"token"`
}

// UploadResult returns the stored object key.
type UploadResult struct {
	Path string `json:"path"`
}

// NewCountryViews maps the country reference rows onto the wire shape.
func NewCountryViews(countries []domain.Country) []CountryView {
	views := make([]CountryView, 0, len(countries))
	for _, country := range countries {
		views = append(views, CountryView{
			ID:   country.ID,
			Code: country.Code,
			Name: country.Name,
		})
	}
	return views
}

// NewUserView maps a sanitized domain user onto the wire shape.
func NewUserView(user domain.User) UserView {
	view := UserView{
		ID:              user.ID,
		FirstName:       user.FirstName,
		MiddleName:      user.MiddleName,
		LastName:        user.LastName,
		Email:           user.Email,
		CompanyName:     user.CompanyName,
		MobileNumber:    user.MobileNumber,
		Address:         user.Address,
		Country:         user.Country,
		RegionCode:      user.RegionCode,
		IsEmailVerified: user.IsEmailVerified,
		IsActive:        user.IsActive,
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
	}

	if user.CountryRef != nil {
		view.CountryRef = &CountryView{
			ID:   user.CountryRef.ID,
			Code: user.CountryRef.Code,
			Name: user.CountryRef.Name,
		}
	}

	return view
}
