package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/codedrop/internal/app_events"
	receiverEvent "github.com/rescp17/codedrop/internal/app_events/receiver"
	senderEvent "github.com/rescp17/codedrop/internal/app_events/sender"
	"github.com/rescp17/codedrop/internal/util"
)

// ErrNoAnswer means the offer prompt hit the end of its input.
var ErrNoAnswer = errors.New("no answer to the file offer")

// RunPlain drives ctrl without a terminal UI: it sends start, prints app
// messages as lines to out and answers file offers from in. It returns
// when the transfer finishes or fails.
func RunPlain(ctx context.Context, ctrl AppController, start appevents.AppEvent, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		done <- ctrl.Run(ctx)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	select {
	case ctrl.AppEvents() <- start:
	case <-ctx.Done():
		return ctx.Err()
	}

	answers := bufio.NewScanner(in)
	lastPct := -1
	for {
		var msg tea.Msg
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			if err == nil {
				err = errors.New("app stopped before the transfer finished")
			}
			return err
		case msg = <-ctrl.UIMessages():
		}

		switch msg := msg.(type) {
		case senderEvent.StatusUpdateMsg:
			fmt.Fprintln(out, msg.Message)
		case appevents.CodeReadyMsg:
			fmt.Fprintf(out, "Code: %s\nOn the other computer run: codedrop receive %s\n", msg.Code, msg.Code)
		case appevents.ConnectedMsg:
			if msg.Info.Verifier != "" {
				fmt.Fprintf(out, "Connected, verifier %s\n", msg.Info.Verifier)
			}
		case appevents.ProgressMsg:
			// One line per 10%.
			pct := int(msg.Percent()*100) / 10 * 10
			if pct > lastPct {
				lastPct = pct
				fmt.Fprintf(out, "%3d%% %s / %s\n", pct, util.FormatSize(msg.Sent), util.FormatSize(msg.Total))
			}
		case receiverEvent.FileOfferMsg:
			d := msg.Descriptor
			fmt.Fprintf(out, "Receive %s (%s)? [y/N] ", d.Name, util.FormatSize(d.Size))
			if !answers.Scan() {
				fmt.Fprintln(out)
				return ErrNoAnswer
			}
			var ev appevents.AppEvent = receiverEvent.RejectFileRequestEvent{}
			if a := strings.ToLower(strings.TrimSpace(answers.Text())); a == "y" || a == "yes" {
				ev = receiverEvent.AcceptFileRequestEvent{}
			}
			select {
			case ctrl.AppEvents() <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		case senderEvent.TransferCompleteMsg:
			fmt.Fprintf(out, "Sent %s (%s)\n", msg.Name, util.FormatSize(msg.Bytes))
			return nil
		case receiverEvent.TransferFinishedMsg:
			fmt.Fprintf(out, "Received %s (%s), saved to %s\n", msg.Name, util.FormatSize(msg.Size), msg.Path)
			return nil
		case appevents.Error:
			return msg.Err
		}
	}
}
