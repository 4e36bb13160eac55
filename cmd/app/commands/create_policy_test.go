package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunCreatePolicy_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		opts CreatePolicyOptions
	}{
		{
			name: "invalid team id",
			opts: CreatePolicyOptions{
				TeamID:      "not-a-uuid",
				Name:        "admin",
				PathPattern: "/services/*",
				Effect:      "ALLOW",
				Permissions: []string{"read"},
			},
		},
		{
			name: "invalid effect",
			opts: CreatePolicyOptions{
				TeamID:      "019233d8-0000-7000-8000-000000000000",
				Name:        "admin",
				PathPattern: "/services/*",
				Effect:      "MAYBE",
				Permissions: []string{"read"},
			},
		},
		{
			name: "no permissions",
			opts: CreatePolicyOptions{
				TeamID:      "019233d8-0000-7000-8000-000000000000",
				Name:        "admin",
				PathPattern: "/services/*",
				Effect:      "ALLOW",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunCreatePolicy(context.Background(), tt.opts)
			assert.Error(t, err)
		})
	}
}
