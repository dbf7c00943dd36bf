package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorsResource(t *testing.T) {
	t.Run(
		"1. empty params",
		func(t *testing.T) {
			res, errCr := NewResource(
				&ResourceRow{},
			)
			require.Error(t, errCr)
			require.Nil(t, res)

			var errValidation *ValidationError
			require.True(t, errors.As(errCr, &errValidation))
			require.Equal(t, InvalidResource, errValidation.Condition)
		},
	)

	t.Run(
		"2. zero capacity",
		func(t *testing.T) {
			res, errCr := NewResource(
				&ResourceRow{
					Name: "Kesimhane",
				},
			)
			require.Error(t, errCr)
			require.Nil(t, res)
		},
	)

	t.Run(
		"3. machine on unknown resource",
		func(t *testing.T) {
			machine, errCr := NewMachine(
				&MachineRow{
					Name:         "CNC-1",
					ResourceName: "Freze",
				},
				map[string]*Resource{},
			)
			require.Error(t, errCr)
			require.Nil(t, machine)

			var errValidation *ValidationError
			require.True(t, errors.As(errCr, &errValidation))
			require.Equal(t, ResourceNotFound, errValidation.Condition)
		},
	)
}

func TestLifeCycleResource(t *testing.T) {
	res, errCr := NewResource(
		&ResourceRow{
			Name:               "Freze",
			Capacity:           2,
			AllowsMultiMachine: true,
		},
	)
	require.NoError(t, errCr)
	require.NotNil(t, res)

	machine, errMachine := NewMachine(
		&MachineRow{
			Name:         "CNC-1",
			ResourceName: "Freze",
		},
		map[string]*Resource{
			"Freze": res,
		},
	)
	require.NoError(t, errMachine)
	require.Equal(t, res, machine.Resource)
}
