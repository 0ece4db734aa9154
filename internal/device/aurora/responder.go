package aurora

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/jpalmerr/aurorapulse/internal/device"
)

// Responder answers one request on behalf of a simulated inverter.
type Responder func(addr device.Address, req device.Request) (device.Response, error)

// Serve reads request frames from conn and writes the responder's answers
// until the peer disconnects or ctx is done. A responder error, or a
// request it cannot encode, closes the connection the way a bridge drops
// a confused link.
func Serve(ctx context.Context, conn net.Conn, respond Responder) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	buf := make([]byte, requestSize)
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		addr, req, err := ParseRequest(buf)
		if err != nil {
			return err
		}
		resp, err := respond(addr, req)
		if err != nil {
			return err
		}
		out, err := EncodeResponse(resp, globalStateRun)
		if err != nil {
			return err
		}
		if _, err := conn.Write(out); err != nil {
			return err
		}
	}
}
