package chat

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"CounselPortal/logger"
	"CounselPortal/tools/ids"
	"CounselPortal/tools/safe"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // origin policy enforced by middleware
}

const maxFrameSize = 64 << 10

// HandleWS upgrades the request and runs the connection's read loop.
// Writes happen only on the client's writer goroutine; this loop never
// touches the socket for output.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}
	ws.SetReadLimit(maxFrameSize)

	connID := ids.GenerateString()
	client, err := s.connMgr.Register(connID, ws)
	if err != nil {
		logger.Infof("[ws] register conn=%s: %v", connID, err)
		_ = ws.Close()
		return
	}
	s.connMgr.AttachPongHandler(ws, connID)
	s.connMgr.SendTo(connID, EventConnectionAck, BuildConnectionAck(connID, s.connMgr.GwId()))

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s", connID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", connID, rerr)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", connID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad frame conn=%s err=%v sample=%q", connID, perr, sample)
			continue
		}

		safe.Run(func() {
			if err := s.disp.Dispatch(&Context{S: s}, frame, client); err != nil {
				logger.Infof("[ws] handler err conn=%s type=%s: %v", connID, frame.Type, err)
			}
		})
	}

	// teardown: room cleanup and presence disconnect run via the close hook
	s.connMgr.Drop(connID, "read loop exit")
}
