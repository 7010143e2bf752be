package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrMissingField = errors.New("missing required field")

// FieldError reports a single invalid or missing input field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e FieldError) Unwrap() error {
	return ErrMissingField
}

type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return "invalid input: " + strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() error {
	if len(v) == 0 {
		return nil
	}
	return ErrMissingField
}

// DatasetInput describes a dataset to analyze and what the user wants from it.
type DatasetInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Request     string `json:"request"`
}

func (d DatasetInput) Validate() error {
	var errs ValidationErrors
	required := []struct {
		field string
		value string
	}{
		{"name", d.Name},
		{"description", d.Description},
		{"url", d.URL},
		{"request", d.Request},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, FieldError{Field: r.field, Message: "is required"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func LoadDatasetInput(path string) (DatasetInput, error) {
	var in DatasetInput
	if err := readJSON(path, &in); err != nil {
		return in, err
	}
	if err := in.Validate(); err != nil {
		return in, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

// SupportTicket is one inbound customer message for the routing example.
type SupportTicket struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// LoadTickets reads a JSON array of tickets. Tickets without an id get their
// position as id; tickets without text are rejected.
func LoadTickets(path string) ([]SupportTicket, error) {
	var tickets []SupportTicket
	if err := readJSON(path, &tickets); err != nil {
		return nil, err
	}

	var errs ValidationErrors
	for i := range tickets {
		if tickets[i].ID == "" {
			tickets[i].ID = fmt.Sprintf("%d", i+1)
		}
		if strings.TrimSpace(tickets[i].Text) == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("[%d].text", i), Message: "is required"})
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%s: %w", path, errs)
	}
	return tickets, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse input file %s: %w", path, err)
	}
	return nil
}
