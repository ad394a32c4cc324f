package notify_libnotify

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Notifier sends desktop notifications through notify-send. A soft notifier
// swallows delivery failures, e.g. on headless hosts.
type Notifier struct {
	soft bool
	bin  string
	opt  Options
}

type Options struct {
	Urgency string
	Expire  time.Duration
}

func New(opt Options) *Notifier     { return &Notifier{bin: "notify-send", opt: opt} }
func NewSoft(opt Options) *Notifier { return &Notifier{soft: true, bin: "notify-send", opt: opt} }

func (n *Notifier) Notify(ctx context.Context, title, body, url string) error {
	opt := n.opt
	if strings.HasPrefix(title, "❌") {
		opt.Urgency = "critical"
	}
	return n.NotifyWith(ctx, title, body, url, opt)
}

func (n *Notifier) NotifyWith(ctx context.Context, title, body, url string, opt Options) error {
	cmd := exec.CommandContext(ctx, n.bin, args(title, body, url, opt)...)
	if err := cmd.Run(); err != nil {
		if n.soft {
			return nil
		}
		return err
	}

	return nil
}

func args(title, body, url string, opt Options) []string {
	if strings.TrimSpace(url) != "" {
		if body == "" {
			body = url
		} else {
			body = body + "\n" + url
		}
	}

	out := []string{"--app-name=pipedash"}
	if opt.Urgency != "" {
		out = append(out, "--urgency="+opt.Urgency)
	}
	if opt.Expire > 0 {
		ms := strconv.Itoa(int(opt.Expire / time.Millisecond))
		out = append(out, "--expire-time="+ms)
	}
	return append(out, title, body)
}
