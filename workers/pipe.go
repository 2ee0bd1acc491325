package workers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mailru/easyjson/jwriter"
	"github.com/rs/zerolog"
	nostr "github.com/soapbox-pub/ditto-sub000"
	"github.com/tidwall/gjson"
)

var ErrPolicyExited = errors.New("policy process exited")

var _ Policy = (*PipePolicy)(nil)

// PipePolicy talks to a long-running plugin process, one JSON object per line each way.
// A process that times out or misbehaves is killed and restarted on the next call.
type PipePolicy struct {
	Command string
	Args    []string
	Timeout time.Duration

	// Source returns the client address reported to the plugin.
	Source func(ctx context.Context) string

	Logger *zerolog.Logger

	mu   sync.Mutex
	proc *pipeProcess
}

type pipeProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan []byte
}

func NewPipePolicy(command string, args ...string) *PipePolicy {
	nop := zerolog.Nop()
	return &PipePolicy{Command: command, Args: args, Timeout: 5 * time.Second, Logger: &nop}
}

func (p *PipePolicy) start() (*pipeProcess, error) {
	cmd := exec.Command(p.Command, p.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", p.Command, err)
	}

	proc := &pipeProcess{cmd: cmd, stdin: stdin, lines: make(chan []byte, 1)}
	go func() {
		defer close(proc.lines)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			proc.lines <- append([]byte(nil), scanner.Bytes()...)
		}
	}()

	return proc, nil
}

func (p *PipePolicy) stop() {
	if p.proc == nil {
		return
	}
	p.proc.stdin.Close()
	p.proc.cmd.Process.Kill()
	p.proc.cmd.Wait()
	for range p.proc.lines {
	}
	p.proc = nil
}

func (p *PipePolicy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop()
}

func (p *PipePolicy) Check(ctx context.Context, evt nostr.Event) (Verdict, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	if p.proc == nil {
		proc, err := p.start()
		if err != nil {
			return Verdict{}, err
		}
		p.proc = proc
	}

	source := ""
	if p.Source != nil {
		source = p.Source(ctx)
	}
	if _, err := p.proc.stdin.Write(encodeRequest(evt, source)); err != nil {
		p.stop()
		return Verdict{}, fmt.Errorf("failed to write to policy: %w", err)
	}

	for {
		select {
		case line, ok := <-p.proc.lines:
			if !ok {
				p.stop()
				return Verdict{}, ErrPolicyExited
			}
			v, err := decodeResponse(line)
			if err != nil {
				p.stop()
				return Verdict{}, err
			}
			if v.ID != evt.ID {
				p.Logger.Warn().Str("got", v.ID.Hex()).Str("want", evt.ID.Hex()).Msg("policy answered for another event")
				continue
			}
			return v, nil
		case <-ctx.Done():
			p.stop()
			return Verdict{}, contextError(ctx)
		}
	}
}

func encodeRequest(evt nostr.Event, source string) []byte {
	sourceType := "IP4"
	if strings.Contains(source, ":") {
		sourceType = "IP6"
	}

	w := jwriter.Writer{}
	w.RawString(`{"type":"new","event":`)
	evt.MarshalEasyJSON(&w)
	w.RawString(`,"receivedAt":`)
	w.Int64(time.Now().Unix())
	w.RawString(`,"sourceType":`)
	w.String(sourceType)
	w.RawString(`,"sourceInfo":`)
	w.String(source)
	w.RawString("}\n")
	return w.Buffer.BuildBytes()
}

func decodeResponse(line []byte) (Verdict, error) {
	if !gjson.ValidBytes(line) {
		return Verdict{}, fmt.Errorf("policy wrote invalid json: %.100s", line)
	}

	res := gjson.ParseBytes(line)
	id, err := nostr.IDFromHex(res.Get("id").String())
	if err != nil {
		return Verdict{}, fmt.Errorf("policy answered with a bad id: %w", err)
	}

	v := Verdict{ID: id, Reason: res.Get("msg").String()}
	switch action := res.Get("action").String(); action {
	case "accept":
		v.OK = true
	case "reject":
		v.OK = false
	case "shadowReject":
		v.Shadow = true
	default:
		return Verdict{}, fmt.Errorf("policy answered with unknown action '%s'", action)
	}
	return v, nil
}
