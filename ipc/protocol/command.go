package protocol

import "strconv"

// Command is the tag at the start of every request.
type Command uint32

const (
	CmdUnknown Command = iota

	CmdInstanceGetShmHandle
	CmdInstanceDescribeClient

	CmdSystemGetClients
	CmdSystemGetClientInfo
	CmdSystemSetPrimaryClient
	CmdSystemSetFocusedClient
	CmdSystemToggleIOClient
	CmdSystemToggleIODevice
	CmdSystemCompositorGetInfo

	CmdSessionCreate
	CmdSessionBegin
	CmdSessionEnd
	CmdSessionDestroy
	CmdSessionPollEvents

	CmdCompositorGetInfo
	CmdCompositorPredictFrame
	CmdCompositorWaitWoke
	CmdCompositorBeginFrame
	CmdCompositorDiscardFrame
	CmdCompositorLayerSync
	CmdCompositorSemaphoreCreate
	CmdCompositorSemaphoreDestroy

	CmdSwapchainCreate
	CmdSwapchainImport
	CmdSwapchainWaitImage
	CmdSwapchainAcquireImage
	CmdSwapchainReleaseImage
	CmdSwapchainDestroy

	CmdDeviceUpdateInput
	CmdDeviceGetTrackedPose
	CmdDeviceGetHandTracking
	CmdDeviceGetViewPose
	CmdDeviceSetOutput

	cmdEnd
)

var commandNames = [...]string{
	CmdUnknown:                    "unknown",
	CmdInstanceGetShmHandle:       "instance_get_shm_handle",
	CmdInstanceDescribeClient:     "instance_describe_client",
	CmdSystemGetClients:           "system_get_clients",
	CmdSystemGetClientInfo:        "system_get_client_info",
	CmdSystemSetPrimaryClient:     "system_set_primary_client",
	CmdSystemSetFocusedClient:     "system_set_focused_client",
	CmdSystemToggleIOClient:       "system_toggle_io_client",
	CmdSystemToggleIODevice:       "system_toggle_io_device",
	CmdSystemCompositorGetInfo:    "system_compositor_get_info",
	CmdSessionCreate:              "session_create",
	CmdSessionBegin:               "session_begin",
	CmdSessionEnd:                 "session_end",
	CmdSessionDestroy:             "session_destroy",
	CmdSessionPollEvents:          "session_poll_events",
	CmdCompositorGetInfo:          "compositor_get_info",
	CmdCompositorPredictFrame:     "compositor_predict_frame",
	CmdCompositorWaitWoke:         "compositor_wait_woke",
	CmdCompositorBeginFrame:       "compositor_begin_frame",
	CmdCompositorDiscardFrame:     "compositor_discard_frame",
	CmdCompositorLayerSync:        "compositor_layer_sync",
	CmdCompositorSemaphoreCreate:  "compositor_semaphore_create",
	CmdCompositorSemaphoreDestroy: "compositor_semaphore_destroy",
	CmdSwapchainCreate:            "swapchain_create",
	CmdSwapchainImport:            "swapchain_import",
	CmdSwapchainWaitImage:         "swapchain_wait_image",
	CmdSwapchainAcquireImage:      "swapchain_acquire_image",
	CmdSwapchainReleaseImage:      "swapchain_release_image",
	CmdSwapchainDestroy:           "swapchain_destroy",
	CmdDeviceUpdateInput:          "device_update_input",
	CmdDeviceGetTrackedPose:       "device_get_tracked_pose",
	CmdDeviceGetHandTracking:      "device_get_hand_tracking",
	CmdDeviceGetViewPose:          "device_get_view_pose",
	CmdDeviceSetOutput:            "device_set_output",
}

// Valid reports if c is a command the server knows.
func (c Command) Valid() bool {
	return c > CmdUnknown && c < cmdEnd
}

func (c Command) String() string {
	if c < cmdEnd {
		return commandNames[c]
	}
	return "Command(" + strconv.FormatUint(uint64(c), 10) + ")"
}
