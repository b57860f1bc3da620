package dto

// ModerateRequest sets both account flags at once.
type ModerateRequest struct {
	UserID   string `json:"userId" validate:"required,uuid"`
	Verified *bool  `json:"verified" validate:"required"`
	Banned   *bool  `json:"banned" validate:"required"`
}
