package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnsphere/core"
)

type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Class is a group of students, eg: "9-A".
type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SchoolID  string    `json:"school_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Subject struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Metadata  core.Metadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}

type NewSchool struct {
	Name    string `json:"name" validate:"required,notblank"`
	Address string `json:"address"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Address = core.CleanString(ns.Address)
	return validate.Struct(ns)
}

type NewClass struct {
	Name     string `json:"name" validate:"required,notblank,max=20"`
	SchoolID string `json:"school_id" validate:"required"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

type NewSubject struct {
	Name     string        `json:"name" validate:"required,notblank"`
	Metadata core.Metadata `json:"metadata"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}
