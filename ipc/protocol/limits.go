package protocol

// Capacities shared by the server and clients. They are part of the shared memory layout and the
// wire contract, changing any of them breaks existing clients.
const (
	// MaxClients is the number of session slots the server has.
	MaxClients = 8
	// MaxClientSwapchains is the size of a session's swapchain table.
	MaxClientSwapchains = 32
	// MaxClientSemaphores is the size of a session's compositor semaphore table.
	MaxClientSemaphores = 8
	// MaxSlots is the capacity of the frame slot ring.
	MaxSlots = 128
	// MaxLayers is the most layers one frame slot can hold.
	MaxLayers = 16
	// MaxEvents is the capacity of a session's event queue.
	MaxEvents = 32

	MaxSharedDevices         = 8
	MaxSharedInputs          = 1024
	MaxSharedOutputs         = 128
	MaxSharedBindingProfiles = 64
	MaxSharedInputPairs      = 1024
	MaxSharedOutputPairs     = 128
	MaxSharedTrackingOrigins = 8

	// MaxHandles is the most handles that can travel with a single message.
	MaxHandles = 8
	// MaxFrameSize bounds the body of a single message.
	MaxFrameSize = 64 * 1024
	// MaxNameLen bounds application names sent by clients.
	MaxNameLen = 128
)
