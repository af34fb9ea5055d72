// pkg/core/world.go
package core

// World is the host scene as seen by the extension.
type World interface {
	// Components lists every live component. Order does not matter.
	Components() []Component
	// FloatingOriginOffset is added to local positions to get absolute ones.
	FloatingOriginOffset() Vector3
}

// StatusDisplay is implemented by hosts that can show an on-screen message.
type StatusDisplay interface {
	ShowStatusMessage(msg string)
}
