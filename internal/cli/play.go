package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/duelsync-go/internal/model"
	"github.com/mcoot/duelsync-go/internal/protocol"
)

// playOptions controls a play session
type playOptions struct {
	velX      float64
	velZ      float64
	setVel    bool
	autoStart bool
	duration  time.Duration
	frames    int

	// untilReply stops after the first response to the opening request
	untilReply bool
}

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Take part in a session over the websocket protocol",
		Long: `Connect to the server's websocket endpoint, send one request and stream
every frame the server sends back.

Frames include:
  - *_RESPONSE: Reply to this connection's request
  - GAME_STATUS_UPDATE: The session's status changed
  - POSITIONS_UPDATE: Player positions after a tick

Press Ctrl+C to disconnect.`,
	}

	cmd.AddCommand(newPlayCreateCmd())
	cmd.AddCommand(newPlayJoinCmd())
	cmd.AddCommand(newPlayRejoinCmd())
	cmd.AddCommand(newPlayStartCmd())

	return cmd
}

func addPlayFlags(cmd *cobra.Command, opts *playOptions) {
	cmd.Flags().Float64Var(&opts.velX, "vel-x", 0, "Velocity x component to send once joined")
	cmd.Flags().Float64Var(&opts.velZ, "vel-z", 0, "Velocity z component to send once joined")
	cmd.Flags().BoolVar(&opts.autoStart, "start", false, "Start the session as soon as both players are connected")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Disconnect after this long (default: until interrupted)")
	cmd.Flags().IntVar(&opts.frames, "frames", 0, "Disconnect after this many frames (default: unlimited)")
}

func velocityChanged(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("vel-x") || cmd.Flags().Changed("vel-z")
}

func newPlayCreateCmd() *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session and play as player 1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.setVel = velocityChanged(cmd)
			return runPlay(cmd, protocol.CreateNewSession{}, opts)
		},
	}
	addPlayFlags(cmd, &opts)

	return cmd
}

func newPlayJoinCmd() *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "join <session-id>",
		Short: "Join a session as player 2",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.setVel = velocityChanged(cmd)
			return runPlay(cmd, protocol.JoinSession{ID: model.SessionID(args[0])}, opts)
		},
	}
	addPlayFlags(cmd, &opts)

	return cmd
}

func newPlayRejoinCmd() *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "rejoin <session-id> <player-id>",
		Short: "Reattach to an existing player",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.setVel = velocityChanged(cmd)
			return runPlay(cmd, protocol.RejoinExistingSession{
				ID:       model.SessionID(args[0]),
				PlayerID: model.PlayerID(args[1]),
			}, opts)
		},
	}
	addPlayFlags(cmd, &opts)

	return cmd
}

func newPlayStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <session-id>",
		Short: "Start a session whose players are both connected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, protocol.StartSessionGame{ID: model.SessionID(args[0])}, playOptions{untilReply: true})
		},
	}
}

func runPlay(cmd *cobra.Command, opening protocol.ClientEvent, opts playOptions) error {
	wsURL, err := cfg.WebSocketURL()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	conn, err := DialSession(ctx, wsURL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	// Unblock Next when the context ends
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	out := NewOutput(cfg.Output, cmd.OutOrStdout())
	if cfg.Verbose {
		out.PrintMessage(fmt.Sprintf("Connected to %s", wsURL))
	}

	if err := conn.Send(opening); err != nil {
		return err
	}

	p := &player{conn: conn, opts: opts}
	for count := 1; ; count++ {
		frame, err := conn.Next()
		if err != nil {
			if ctx.Err() != nil {
				if cfg.Verbose {
					out.PrintMessage("Disconnected")
				}
				return nil
			}
			return fmt.Errorf("stream error: %w", err)
		}

		out.PrintFrame(frame)

		done, err := p.handle(frame.Event)
		if err != nil || done {
			return err
		}
		if opts.frames > 0 && count >= opts.frames {
			return nil
		}
	}
}

// player reacts to server frames on behalf of the user
type player struct {
	conn      *SessionConn
	opts      playOptions
	sessionID model.SessionID
	starting  bool
}

// handle reports whether the session should end
func (p *player) handle(ev protocol.ServerEvent) (bool, error) {
	switch e := ev.(type) {
	case protocol.CreateNewSessionResponse:
		return p.joined(e.Result)
	case protocol.JoinSessionResponse:
		return p.joined(e.Result)
	case protocol.RejoinExistingSessionResponse:
		return p.joined(e.Result)
	case protocol.StartSessionGameResponse:
		if !e.IsSuccess {
			if p.opts.untilReply {
				return true, errors.New(e.FailureMessage)
			}
			// the other player may drop between the status update and the start
			p.starting = false
			return false, nil
		}
		return p.opts.untilReply, nil
	case protocol.GameStatusUpdate:
		return false, p.maybeStart(e.Status)
	}
	return false, nil
}

func (p *player) joined(res protocol.Result[protocol.SessionJoined]) (bool, error) {
	if !res.IsSuccess {
		return true, errors.New(res.FailureMessage)
	}
	p.sessionID = res.Data.ID
	if p.opts.setVel {
		if err := p.conn.Send(protocol.PlayerUpdate{
			ID:  p.sessionID,
			Vel: protocol.Vec2{X: p.opts.velX, Z: p.opts.velZ},
		}); err != nil {
			return true, err
		}
	}
	return p.opts.untilReply, p.maybeStart(res.Data.Status)
}

func (p *player) maybeStart(status model.SessionStatus) error {
	if !p.opts.autoStart || p.starting || p.sessionID == "" || status != model.StatusAwaitingStart {
		return nil
	}
	p.starting = true
	return p.conn.Send(protocol.StartSessionGame{ID: p.sessionID})
}
