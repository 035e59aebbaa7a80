// Package rtc implements the negotiation-engine contracts on pion/webrtc.
package rtc

import (
	"github.com/pion/webrtc/v4"

	"github.com/metaschool/rtcrelay/internal/core"
	"github.com/metaschool/rtcrelay/internal/domain"
)

// Engine builds peer-connection sessions with a shared ICE configuration.
// Engine.NewSession is the directory's session factory.
type Engine struct {
	cfg webrtc.Configuration
}

func NewEngine(stunURLs []string) *Engine {
	return &Engine{
		cfg: webrtc.Configuration{
			ICEServers: []webrtc.ICEServer{
				{URLs: stunURLs},
			},
		},
	}
}

func (e *Engine) NewSession(user domain.UserID) (core.Session, error) {
	pc, err := webrtc.NewPeerConnection(e.cfg)
	if err != nil {
		return nil, err
	}
	return newSession(pc, user), nil
}
