package optionfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClientSection(t *testing.T) {
	src := `
[mysqld]
host=ignored

[client]
host = 127.0.0.1
port=3306
user = "root"
password = 'secret'
database=test
`
	v, err := Parse(strings.NewReader(src))
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1", v.Host)
	assert.Equal(t, "3306", v.Port)
	assert.Equal(t, "root", v.User)
	assert.Equal(t, "secret", v.Password)
	assert.Equal(t, "test", v.Database)
}

func TestParseNoClientSection(t *testing.T) {
	v, err := Parse(strings.NewReader("[mysqld]\nhost=foo\n"))
	assert.NoError(t, err)
	assert.Equal(t, "", v.Host)
}

func TestReadMissingFile(t *testing.T) {
	v, err := Read("/nonexistent/path/my.cnf")
	assert.NoError(t, err)
	assert.Equal(t, Values{}, v)
}
