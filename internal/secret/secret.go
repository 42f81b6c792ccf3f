// Package secret turns the PASSWORD argument into password bytes.
//
// The argument is always the password itself unless PASSWORD_SOURCE opts into
// another source: "prompt" reads it from the terminal without echo and "ssm"
// treats the argument as the name of a SecureString parameter in AWS Systems
// Manager Parameter Store.
package secret

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/term"
)

// Password sources selectable through PASSWORD_SOURCE.
const (
	SourceArgument = "argument"
	SourcePrompt   = "prompt"
	SourceSSM      = "ssm"
)

// ValidSource reports whether source names a known password source. The
// empty string selects SourceArgument.
func ValidSource(source string) bool {
	switch source {
	case "", SourceArgument, SourcePrompt, SourceSSM:
		return true
	}
	return false
}

type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type Resolver struct {
	// SSM is created from the default AWS config on first use when nil.
	SSM SSMAPI
	// ReadPassword reads one password without echo.
	ReadPassword func() ([]byte, error)
	// Prompt receives the "Password: " prompt.
	Prompt io.Writer
}

func NewResolver() *Resolver {
	return &Resolver{
		ReadPassword: readStdinPassword,
		Prompt:       os.Stderr,
	}
}

// Resolve returns the password for source. raw is the PASSWORD argument; it is
// ignored when prompting.
func (r *Resolver) Resolve(ctx context.Context, source, raw string) ([]byte, error) {
	switch source {
	case "", SourceArgument:
		return []byte(raw), nil
	case SourcePrompt:
		return r.prompt()
	case SourceSSM:
		return r.fromSSM(ctx, raw)
	default:
		return nil, fmt.Errorf("unknown password source %q", source)
	}
}

// Describe says where the password is read from without revealing it.
func Describe(source, raw string) string {
	switch source {
	case SourcePrompt:
		return "terminal"
	case SourceSSM:
		return "ssm parameter " + raw
	default:
		return "argument"
	}
}

func (r *Resolver) prompt() ([]byte, error) {
	if r.ReadPassword == nil {
		return nil, errors.New("no terminal available to read the password")
	}
	if r.Prompt != nil {
		fmt.Fprint(r.Prompt, "Password: ")
	}
	pw, err := r.ReadPassword()
	if r.Prompt != nil {
		fmt.Fprintln(r.Prompt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return pw, nil
}

func (r *Resolver) fromSSM(ctx context.Context, name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("ssm parameter name is empty")
	}

	if r.SSM == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		r.SSM = ssm.NewFromConfig(awsCfg)
	}

	out, err := r.SSM.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("SSM GetParameter: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("SSM parameter %q has no value", name)
	}
	return []byte(aws.ToString(out.Parameter.Value)), nil
}

// readStdinPassword reads without echo from a terminal, or the first line of
// stdin when it is piped.
func readStdinPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		return term.ReadPassword(fd)
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}
