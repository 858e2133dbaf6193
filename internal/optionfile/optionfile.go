// Package optionfile reads the [client] section of a my.cnf-style
// option file, letting cmd/asyncmy pick up a default host/user/password
// the way the mysql command-line client does. There is no teacher or
// pack analogue for this file format; it is grounded directly in the
// documented my.cnf [client] section syntax, kept deliberately small
// since this driver only ever reads it, never writes it.
package optionfile

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Values holds the subset of [client] keys cmd/asyncmy understands.
type Values struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Socket   string
}

// Read parses an option file, returning the [client] section's values.
// A missing file is not an error; it returns a zero Values.
func Read(path string) (Values, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Values{}, nil
		}
		return Values{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads r as a my.cnf-style file and extracts the [client]
// section.
func Parse(r io.Reader) (Values, error) {
	var v Values
	sc := bufio.NewScanner(r)
	inClient := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inClient = strings.EqualFold(strings.Trim(line, "[]"), "client")
			continue
		}
		if !inClient {
			continue
		}
		key, val := splitOption(line)
		switch key {
		case "host":
			v.Host = val
		case "port":
			v.Port = val
		case "user":
			v.User = val
		case "password":
			v.Password = val
		case "database":
			v.Database = val
		case "socket":
			v.Socket = val
		}
	}
	if err := sc.Err(); err != nil {
		return Values{}, err
	}
	return v, nil
}

func splitOption(line string) (key, value string) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return strings.TrimSpace(line), ""
	}
	key = strings.ToLower(strings.TrimSpace(line[:idx]))
	value = strings.Trim(strings.TrimSpace(line[idx+1:]), `"'`)
	return key, value
}
