package scheduler

import (
	goerrors "github.com/TudorHulban/go-errors"
)

// ResourceRow is the catalog shape of a resource.
type ResourceRow struct {
	Name     string `toml:"name" yaml:"name"`
	Capacity int    `toml:"capacity" yaml:"capacity"`

	// IsBatchable marks procurement, cutting and design style resources
	// whose steps of one batch class run together as a single unit.
	IsBatchable bool `toml:"batchable" yaml:"batchable"`

	// AllowsMultiMachine lets a step list several permitted machines.
	AllowsMultiMachine bool `toml:"multi_machine" yaml:"multi_machine"`
}

// MachineRow is the catalog shape of a machine.
type MachineRow struct {
	Name         string `toml:"name" yaml:"name"`
	ResourceName string `toml:"resource" yaml:"resource"`
}

type Resource struct {
	Name string

	Capacity           int
	IsBatchable        bool
	AllowsMultiMachine bool
}

type Machine struct {
	Name     string
	Resource *Resource
}

func (row *ResourceRow) IsValid() error {
	if len(row.Name) == 0 {
		return goerrors.ErrValidation{
			Caller: "IsValid - ResourceRow",
			Issue: goerrors.ErrNilInput{
				InputName: "Name",
			},
		}
	}

	if row.Capacity <= 0 {
		return goerrors.ErrValidation{
			Caller: "IsValid - ResourceRow",
			Issue: goerrors.ErrNegativeInput{
				InputName: "Capacity",
			},
		}
	}

	return nil
}

func NewResource(row *ResourceRow) (*Resource, error) {
	if errValidation := row.IsValid(); errValidation != nil {
		return nil,
			&ValidationError{
				Condition: InvalidResource,
				Subject:   row.Name,
				Issue:     errValidation,
			}
	}

	return &Resource{
			Name:               row.Name,
			Capacity:           row.Capacity,
			IsBatchable:        row.IsBatchable,
			AllowsMultiMachine: row.AllowsMultiMachine,
		},
		nil
}

func (row *MachineRow) IsValid() error {
	if len(row.Name) == 0 {
		return goerrors.ErrValidation{
			Caller: "IsValid - MachineRow",
			Issue: goerrors.ErrNilInput{
				InputName: "Name",
			},
		}
	}

	if len(row.ResourceName) == 0 {
		return goerrors.ErrValidation{
			Caller: "IsValid - MachineRow",
			Issue: goerrors.ErrNilInput{
				InputName: "ResourceName",
			},
		}
	}

	return nil
}

// NewMachine binds a machine row to its owning resource.
func NewMachine(row *MachineRow, resources map[string]*Resource) (*Machine, error) {
	if errValidation := row.IsValid(); errValidation != nil {
		return nil,
			&ValidationError{
				Condition: MachineNotFound,
				Subject:   row.Name,
				Issue:     errValidation,
			}
	}

	resource, exists := resources[row.ResourceName]
	if !exists {
		return nil,
			&ValidationError{
				Condition: ResourceNotFound,
				Subject:   "machine " + row.Name + " references resource " + row.ResourceName,
			}
	}

	return &Machine{
			Name:     row.Name,
			Resource: resource,
		},
		nil
}
