package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `ivan`, escapeLike("ivan"))
	assert.Equal(t, `100\%\_off\\`, escapeLike(`100%_off\`))
}
