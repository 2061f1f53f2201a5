package types

import "github.com/go-playground/validator/v10"

// RunRequest is the search a caller asks an automation run to perform.
type RunRequest struct {
	Title    string `json:"title" validate:"required,min=1"`
	Location string `json:"location" validate:"required,min=1"`
	Limit    int    `json:"limit" validate:"required,gt=0,lte=100"`
}

// Validate validates the RunRequest using the validator.
func (r *RunRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
