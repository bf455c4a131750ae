package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bnema/penphinmind/internal/adapters/mindsim"
	"github.com/bnema/penphinmind/internal/adapters/wire"
	"github.com/bnema/penphinmind/internal/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSimulateCmd(app *app) *cobra.Command {
	var (
		listen    string
		websocket bool
		codec     string
		delay     time.Duration
		token     string
		models    []string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a stand-in mind that echoes prompts word by word",
		Long:  "simulate serves the mind wire protocol on a local address so penphin can be tried without hardware. Replies are the persona followed by the prompt.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wireCodec, err := wire.ForKind(domain.CodecKind(codec))
			if err != nil {
				return err
			}

			server := mindsim.New(
				mindsim.WithCodec(wireCodec),
				mindsim.WithLogger(app.logger.Named("mindsim")),
				mindsim.WithTokenDelay(delay),
				mindsim.WithAuthToken(token),
				mindsim.WithModels(models...),
			)

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", listen, err)
			}

			scheme := "tcp://"
			if websocket {
				scheme = "ws://"
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "simulated mind listening on %s%s (%s)\n", scheme, ln.Addr(), wireCodec.Kind()); err != nil {
				_ = ln.Close()
				return err
			}

			if websocket {
				return serveWebSocket(cmd.Context(), server, ln, app.logger)
			}
			return server.Serve(cmd.Context(), ln)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:10001", "Address to listen on")
	cmd.Flags().BoolVar(&websocket, "ws", false, "Serve websocket instead of raw TCP")
	cmd.Flags().StringVar(&codec, "codec", string(domain.CodecJSON), "Wire codec (json|msgpack)")
	cmd.Flags().DurationVar(&delay, "delay", 50*time.Millisecond, "Pause between streamed words")
	cmd.Flags().StringVar(&token, "token", "", "Require this auth token")
	cmd.Flags().StringSliceVar(&models, "model", nil, "Accepted model names (default any)")

	return cmd
}

func serveWebSocket(ctx context.Context, server *mindsim.Server, ln net.Listener, logger *zap.Logger) error {
	httpServer := &http.Server{
		Handler:           server.WebSocketHandler(ctx),
		ReadHeaderTimeout: 5 * time.Second,
	}

	served := make(chan error, 1)
	go func() {
		served <- httpServer.Serve(ln)
	}()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("websocket shutdown", zap.Error(err))
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
