package platform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Authenticator supplies the interactive login steps.
type Authenticator interface {
	// Code returns the login code sent to phone.
	Code(ctx context.Context, phone string) (string, error)
	// Password returns the two-factor password.
	Password(ctx context.Context) (string, error)
}

// ErrNoPendingPrompt is returned when a code or password is submitted while
// no login is waiting for it.
var ErrNoPendingPrompt = errors.New("no login step is waiting for input")

// StaticAuthenticator returns fixed values. Empty fields fail with ErrAuthRequired.
type StaticAuthenticator struct {
	LoginCode     string
	LoginPassword string
}

// Code implements Authenticator.
func (a StaticAuthenticator) Code(_ context.Context, _ string) (string, error) {
	if a.LoginCode == "" {
		return "", ErrAuthRequired
	}
	return a.LoginCode, nil
}

// Password implements Authenticator.
func (a StaticAuthenticator) Password(_ context.Context) (string, error) {
	if a.LoginPassword == "" {
		return "", ErrAuthRequired
	}
	return a.LoginPassword, nil
}

// PromptAuthenticator asks on a terminal.
type PromptAuthenticator struct {
	in  *bufio.Reader
	out io.Writer
	mu  sync.Mutex
}

// NewPromptAuthenticator reads answers from in and writes prompts to out.
func NewPromptAuthenticator(in io.Reader, out io.Writer) *PromptAuthenticator {
	return &PromptAuthenticator{in: bufio.NewReader(in), out: out}
}

// Code implements Authenticator.
func (a *PromptAuthenticator) Code(ctx context.Context, phone string) (string, error) {
	return a.ask(ctx, fmt.Sprintf("Enter the login code sent to %s: ", maskPhone(phone)))
}

// Password implements Authenticator.
func (a *PromptAuthenticator) Password(ctx context.Context) (string, error) {
	return a.ask(ctx, "Enter your two-factor password: ")
}

func (a *PromptAuthenticator) ask(ctx context.Context, prompt string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprint(a.out, prompt); err != nil {
		return "", err
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		return "", ErrAuthRequired
	}
	return answer, nil
}

// Prompt names the login step a PendingAuthenticator is waiting for.
type Prompt string

const (
	// PromptNone means no login step is waiting.
	PromptNone Prompt = ""
	// PromptCode means a login code is expected.
	PromptCode Prompt = "code"
	// PromptPassword means the two-factor password is expected.
	PromptPassword Prompt = "password"
)

// PendingAuthenticator blocks a login until the answer is submitted from
// elsewhere, typically the HTTP API.
type PendingAuthenticator struct {
	mu       sync.Mutex
	waiting  Prompt
	answerCh chan string
}

// NewPendingAuthenticator creates a PendingAuthenticator.
func NewPendingAuthenticator() *PendingAuthenticator {
	return &PendingAuthenticator{answerCh: make(chan string, 1)}
}

// Code implements Authenticator.
func (a *PendingAuthenticator) Code(ctx context.Context, _ string) (string, error) {
	return a.wait(ctx, PromptCode)
}

// Password implements Authenticator.
func (a *PendingAuthenticator) Password(ctx context.Context) (string, error) {
	return a.wait(ctx, PromptPassword)
}

// Waiting returns the step currently waiting for input.
func (a *PendingAuthenticator) Waiting() Prompt {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.waiting
}

// SubmitCode delivers a login code.
func (a *PendingAuthenticator) SubmitCode(code string) error {
	return a.submit(PromptCode, code)
}

// SubmitPassword delivers the two-factor password.
func (a *PendingAuthenticator) SubmitPassword(password string) error {
	return a.submit(PromptPassword, password)
}

func (a *PendingAuthenticator) submit(p Prompt, answer string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.waiting != p {
		return ErrNoPendingPrompt
	}
	select {
	case a.answerCh <- strings.TrimSpace(answer):
		a.waiting = PromptNone
		return nil
	default:
		return ErrNoPendingPrompt
	}
}

func (a *PendingAuthenticator) wait(ctx context.Context, p Prompt) (string, error) {
	a.mu.Lock()
	a.drainLocked()
	a.waiting = p
	a.mu.Unlock()

	select {
	case answer := <-a.answerCh:
		return answer, nil
	case <-ctx.Done():
		a.mu.Lock()
		if a.waiting == p {
			a.waiting = PromptNone
		}
		// An answer submitted just before cancellation belongs to this login.
		a.drainLocked()
		a.mu.Unlock()
		return "", ctx.Err()
	}
}

// drainLocked discards an unread answer. a.mu must be held.
func (a *PendingAuthenticator) drainLocked() {
	select {
	case <-a.answerCh:
	default:
	}
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "your account"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
