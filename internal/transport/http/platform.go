package http

// wsPlatform drives the browser's fullscreen API over the socket. The client reports
// every change with a "fullscreen" message; only the host loop touches active.
type wsPlatform struct {
	emit   func(outboundMessage[any])
	active bool
}

type fullscreenPayload struct {
	Action string `json:"action"`
}

func (p *wsPlatform) RequestFullscreen() error {
	p.emit(outboundMessage[any]{Type: "fullscreen", Payload: fullscreenPayload{Action: "request"}})
	return nil
}

func (p *wsPlatform) ExitFullscreen() error {
	p.active = false
	p.emit(outboundMessage[any]{Type: "fullscreen", Payload: fullscreenPayload{Action: "exit"}})
	return nil
}

func (p *wsPlatform) IsFullscreen() bool { return p.active }
