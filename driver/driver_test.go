package driver

import (
	"database/sql/driver"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDSNShortForm(t *testing.T) {
	opts, err := parseDSN("mydb/root/secret")
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3306", opts.Addr)
	assert.Equal(t, "mydb", opts.DBName)
	assert.Equal(t, "root", opts.User)
	assert.Equal(t, "secret", opts.Password)
}

func TestParseDSNWithProto(t *testing.T) {
	opts, err := parseDSN("tcp:db.internal:3307*mydb/root/secret")
	assert.NoError(t, err)
	assert.Equal(t, "db.internal:3307", opts.Addr)
	assert.Equal(t, "mydb", opts.DBName)
}

func TestParseDSNRejectsBadProto(t *testing.T) {
	_, err := parseDSN("unix:/tmp/mysql.sock*mydb/root/secret")
	assert.Error(t, err)
}

func TestParseDSNRejectsMissingParts(t *testing.T) {
	_, err := parseDSN("mydb/root")
	assert.Error(t, err)
}

func TestInterpolate(t *testing.T) {
	got, err := interpolate("SELECT * FROM t WHERE a = ? AND b = ?", false, []driver.Value{int64(1), "x"})
	assert.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = 1 AND b = 'x'", got)
}

func TestInterpolateTooFewArgs(t *testing.T) {
	_, err := interpolate("a = ? AND b = ?", false, []driver.Value{int64(1)})
	assert.Error(t, err)
}
