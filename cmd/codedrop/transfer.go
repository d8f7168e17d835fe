package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	receiverEvent "github.com/rescp17/codedrop/internal/app_events/receiver"
	senderEvent "github.com/rescp17/codedrop/internal/app_events/sender"
	"github.com/rescp17/codedrop/pkg/fileInfo"
	"github.com/rescp17/codedrop/pkg/receiver"
	"github.com/rescp17/codedrop/pkg/sender"
	"github.com/rescp17/codedrop/pkg/ui"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

var errFileRequired = errors.New("a file argument is required without a terminal")

func newSendCmd(c *cli) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "send [file]",
		Short: "Send a file; without an argument a file picker opens",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if code != "" {
				if _, _, err := wormhole.ParseCode(code); err != nil {
					return err
				}
			}
			var node *fileInfo.FileNode
			if len(args) == 1 {
				n, err := fileInfo.CreateNode(args[0])
				if err != nil {
					return err
				}
				node = &n
			}
			interactive := c.interactive()
			if node == nil && !interactive {
				return errFileRequired
			}

			if err := c.resolveRelay(cmd.Context()); err != nil {
				return err
			}
			store := c.openHistory()
			defer closeHistory(store)

			cfg := sender.Config{Wormhole: c.cfg.Wormhole}
			if store != nil {
				cfg.History = store
			}
			app := sender.NewApp(wormhole.NewClient(), cfg)

			if !interactive {
				return ui.RunPlain(cmd.Context(), app, senderEvent.SendFileEvent{File: *node, Code: code}, os.Stdin, cmd.OutOrStdout())
			}
			wd, _ := os.Getwd()
			return ui.Run(ui.Sender, app, ui.Options{File: node, Code: code, StartDir: wd})
		},
	}
	cmd.Flags().StringVarP(&code, "code", "c", "", "use this code instead of allocating one")
	return cmd
}

func newReceiveCmd(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "receive [code]",
		Short: "Receive a file using the code shown by the sender",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) == 1 {
				parsed, _, err := wormhole.ParseCode(args[0])
				if err != nil {
					return err
				}
				code = parsed.String()
			}
			interactive := c.interactive()
			if code == "" && !interactive {
				return errors.New("a code argument is required without a terminal")
			}

			outDir, err := filepath.Abs(c.cfg.OutputDir)
			if err != nil {
				return err
			}
			if err := c.resolveRelay(cmd.Context()); err != nil {
				return err
			}
			store := c.openHistory()
			defer closeHistory(store)

			cfg := receiver.Config{
				Wormhole:       c.cfg.Wormhole,
				OutputDir:      outDir,
				MaxReceiveSize: c.cfg.MaxReceiveSize,
				AutoAccept:     yes,
			}
			if store != nil {
				cfg.History = store
			}
			app := receiver.NewApp(wormhole.NewClient(), cfg)

			if !interactive {
				return ui.RunPlain(cmd.Context(), app, receiverEvent.ReceiveEvent{Code: code}, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return ui.Run(ui.Receiver, app, ui.Options{Code: code})
		},
	}
	cmd.Flags().StringP("out", "o", "", "directory to save the file in")
	cmd.Flags().Int64("max-size", 0, "refuse offers larger than this many bytes, 0 disables the limit")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "accept the offer without asking")
	bindFlags(c.v, cmd, map[string]string{
		"output_dir":       "out",
		"max_receive_size": "max-size",
	})
	return cmd
}
