package auth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// DialogPrompter answers one prompt from the PAM-backed dialog plugin.
// Echo reports whether the server asked for the answer to be displayed
// as it is typed (true) or read silently, like a password (false),
// matching the two modes auth.py's (unimplemented, PyMySQL-only) dialog
// plugin distinguishes by the first byte of the prompt packet.
type DialogPrompter func(prompt string, echo bool) (string, error)

// TerminalPrompter builds a DialogPrompter that reads interactively from
// the given file descriptor using golang.org/x/term, echoing typed
// characters only when the server's prompt says to. This is the default
// prompter for the CLI per §9's Open Question decision to support
// `dialog` interactively rather than silently failing it, mirroring the
// term package's password-prompt usage elsewhere in the corpus.
func TerminalPrompter(fd int, out io.Writer) DialogPrompter {
	return func(prompt string, echo bool) (string, error) {
		fmt.Fprint(out, prompt)
		if !echo {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			return string(b), err
		}
		r := bufio.NewReader(io.LimitReader(os.NewFile(uintptr(fd), "dialog"), 4096))
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}

// DialogPrompt decodes one dialog-plugin prompt packet per §4.3: the
// first byte's low bit selects echo mode and its high bit marks the
// last prompt in the exchange (not otherwise used by this driver, which
// always sends one answer per prompt and waits for the server's next
// message or terminal OK/ERR).
func DialogPrompt(pkt []byte, ask DialogPrompter) ([]byte, error) {
	if len(pkt) == 0 {
		return nil, fmt.Errorf("auth: empty dialog prompt packet")
	}
	flag := pkt[0]
	echo := flag&0x01 != 0
	prompt := string(pkt[1:])
	answer, err := ask(prompt, echo)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(answer)+1)
	copy(out, answer)
	return out, nil
}
