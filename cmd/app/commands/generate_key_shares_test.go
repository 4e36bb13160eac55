package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunGenerateKeyShares(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		m       int
		wantErr bool
	}{
		{name: "valid 5 of 3", n: 5, m: 3, wantErr: false},
		{name: "valid 2 of 2", n: 2, m: 2, wantErr: false},
		{name: "too few shares", n: 1, m: 1, wantErr: true},
		{name: "threshold above total", n: 3, m: 4, wantErr: true},
		{name: "threshold below two", n: 5, m: 1, wantErr: true},
		{name: "too many shares", n: 256, m: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunGenerateKeyShares(tt.n, tt.m)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
