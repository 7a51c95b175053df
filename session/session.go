package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/telenornms/vardr"
	"golang.org/x/crypto/ssh"
)

// Session is a live CLI session against a single device. Strictly
// read-only: we run show/display commands, nothing that enters a
// configuration mode.
type Session struct {
	C      *ssh.Client
	Target string
}

func (s *Session) init(user, password string, timeout time.Duration) error {
	cfg := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				// Some platforms only offer keyboard-interactive;
				// answer every prompt with the password.
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		// Router host keys churn with RMAs and OS upgrades; pinning
		// them is the inventory system's job, not ours.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	conn, err := net.DialTimeout("tcp", s.Target, timeout)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %s", vardr.ErrConnection, s.Target, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, s.Target, cfg)
	if err != nil {
		conn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return fmt.Errorf("%w: %s: %s", vardr.ErrAuthentication, s.Target, err)
		}
		return fmt.Errorf("%w: ssh handshake %s: %s", vardr.ErrConnection, s.Target, err)
	}
	s.C = ssh.NewClient(c, chans, reqs)
	return nil
}

func (s *Session) Finalize() {
	s.C.Close()
}

// Run executes one CLI command and returns its combined output. If
// the context expires first, the underlying channel is torn down so
// the blocked read returns, and the error maps to ErrCommandTimeout.
func (s *Session) Run(ctx context.Context, cmd string) (string, error) {
	sess, err := s.C.NewSession()
	if err != nil {
		return "", fmt.Errorf("%w: new channel: %s", vardr.ErrConnection, err)
	}
	defer sess.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := sess.CombinedOutput(cmd)
		done <- result{out, err}
	}()
	select {
	case <-ctx.Done():
		sess.Close()
		return "", fmt.Errorf("%w: %q on %s: %s", vardr.ErrCommandTimeout, cmd, s.Target, ctx.Err())
	case r := <-done:
		if r.err != nil {
			// An exit status means the device ran the command and
			// rejected it; only transport-level failures retry.
			var exitErr *ssh.ExitError
			if errors.As(r.err, &exitErr) {
				return string(r.out), fmt.Errorf("%w: %q on %s: %s", vardr.ErrCommandFailed, cmd, s.Target, r.err)
			}
			return string(r.out), fmt.Errorf("%w: %q on %s: %s", vardr.ErrConnection, cmd, s.Target, r.err)
		}
		return string(r.out), nil
	}
}

// New opens an SSH session to target. The timeout covers dial and
// handshake; command execution deadlines come from the context passed
// to Run.
func New(target, user, password string, timeout time.Duration) (*Session, error) {
	var s Session
	s.Target = target
	err := s.init(user, password, timeout)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
