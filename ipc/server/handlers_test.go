package server

import (
	"os"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/bearlytools/xrtipc/errors"
	"github.com/bearlytools/xrtipc/ipc/protocol"
	"github.com/bearlytools/xrtipc/ipc/shm"
	"github.com/bearlytools/xrtipc/xrt"
	"github.com/bearlytools/xrtipc/xrt/mock"
)

var rgbaInfo = xrt.SwapchainCreateInfo{
	Format: mock.FormatRGBA8, Width: 256, Height: 256,
	SampleCount: 1, FaceCount: 1, ArraySize: 1, MipCount: 1,
}

func wantType(t *testing.T, name string, err error, want errors.Type) {
	t.Helper()
	if got := errors.TypeOf(err); err == nil || got != want {
		t.Errorf("[%s]: got err == %v (type %v), want type %v", name, err, got, want)
	}
}

func TestSessionPreconditions(t *testing.T) {
	ctx := t.Context()
	h := newHarness(t)
	c := h.connect(t)

	calls := []struct {
		name string
		call func() error
	}{
		{"SessionBegin", func() error { return c.SessionBegin(ctx) }},
		{"SessionEnd", func() error { return c.SessionEnd(ctx) }},
		{"SessionDestroy", func() error { return c.SessionDestroy(ctx) }},
		{"PredictFrame", func() error { _, err := c.PredictFrame(ctx); return err }},
		{"CompositorInfo", func() error { _, err := c.CompositorInfo(ctx); return err }},
		{"SwapchainCreate", func() error { _, err := c.SwapchainCreate(ctx, rgbaInfo); return err }},
		{"SemaphoreCreate", func() error { _, _, err := c.SemaphoreCreate(ctx); return err }},
		{"LayerSync", func() error { _, err := c.LayerSync(ctx, 0, 1, nil); return err }},
		{"PollEvent", func() error { _, err := c.PollEvent(ctx); return err }},
	}
	for _, call := range calls {
		wantType(t, "TestSessionPreconditions("+call.name+")", call.call(), errors.TypeSessionNotCreated)
	}

	if err := c.SessionCreate(ctx, xrt.SessionInfo{}); err != nil {
		t.Fatalf("[TestSessionPreconditions]: SessionCreate: %s", err)
	}
	wantType(t, "TestSessionPreconditions(second create)", c.SessionCreate(ctx, xrt.SessionInfo{}), errors.TypeSessionAlreadyCreated)

	// The connection survives every rejected request.
	if _, err := c.CompositorInfo(ctx); err != nil {
		t.Errorf("[TestSessionPreconditions]: CompositorInfo after create: %s", err)
	}

	if err := c.SessionDestroy(ctx); err != nil {
		t.Fatalf("[TestSessionPreconditions]: SessionDestroy: %s", err)
	}
	if !h.sys.Compositors()[0].Destroyed() {
		t.Errorf("[TestSessionPreconditions]: compositor not destroyed by SessionDestroy")
	}
	if err := c.SessionCreate(ctx, xrt.SessionInfo{}); err != nil {
		t.Errorf("[TestSessionPreconditions]: SessionCreate after destroy: %s", err)
	}
}

func TestSwapchainTable(t *testing.T) {
	ctx := t.Context()
	h := newHarness(t)
	c := h.withSession(t, xrt.SessionInfo{})
	comp := h.sys.Compositors()[0]

	for i := range protocol.MaxClientSwapchains {
		sc, err := c.SwapchainCreate(ctx, rgbaInfo)
		if err != nil {
			t.Fatalf("[TestSwapchainTable]: SwapchainCreate %d: %s", i, err)
		}
		if sc.ID != uint32(i) || sc.ImageCount != 3 || len(sc.Images) != 3 || sc.Size != 4096 {
			t.Fatalf("[TestSwapchainTable]: SwapchainCreate %d = %+v", i, sc.SwapchainReply)
		}
		sc.Close()
	}

	_, err := c.SwapchainCreate(ctx, rgbaInfo)
	wantType(t, "TestSwapchainTable(full)", err, errors.TypeResourceExhausted)
	if comp.LiveSwapchains() != protocol.MaxClientSwapchains {
		t.Errorf("[TestSwapchainTable]: live swapchains = %d, want %d", comp.LiveSwapchains(), protocol.MaxClientSwapchains)
	}

	if err := c.SwapchainDestroy(ctx, 5); err != nil {
		t.Fatalf("[TestSwapchainTable]: SwapchainDestroy(5): %s", err)
	}
	wantType(t, "TestSwapchainTable(double destroy)", c.SwapchainDestroy(ctx, 5), errors.TypeInvalidHandle)
	if comp.LiveSwapchains() != protocol.MaxClientSwapchains-1 {
		t.Errorf("[TestSwapchainTable]: live swapchains after destroy = %d, want %d", comp.LiveSwapchains(), protocol.MaxClientSwapchains-1)
	}

	sc, err := c.SwapchainCreate(ctx, rgbaInfo)
	if err != nil {
		t.Fatalf("[TestSwapchainTable]: SwapchainCreate after destroy: %s", err)
	}
	sc.Close()
	if sc.ID&indexMask != 5 || sc.ID == 5 {
		t.Errorf("[TestSwapchainTable]: reused slot got handle %#x, want slot 5 under a new generation", sc.ID)
	}
	// The freed handle does not reach the new occupant.
	wantType(t, "TestSwapchainTable(stale handle)", c.SwapchainDestroy(ctx, 5), errors.TypeInvalidHandle)
	if _, err := c.SwapchainAcquireImage(ctx, sc.ID); err != nil {
		t.Errorf("[TestSwapchainTable]: SwapchainAcquireImage on the reused slot: %s", err)
	}

	wantType(t, "TestSwapchainTable(out of range)", c.SwapchainDestroy(ctx, 1000), errors.TypeInvalidHandle)
}

func TestSwapchainCreateErrors(t *testing.T) {
	tests := []struct {
		name     string
		mismatch bool
		format   int64
		want     errors.Type
	}{
		{name: "Error: unsupported format", format: 7, want: errors.TypeUnsupported},
		// A compositor breaking its contract is a generic failure to the client.
		{name: "Error: images of different sizes", mismatch: true, format: mock.FormatRGBA8, want: errors.TypeUnknown},
	}

	for _, test := range tests {
		h := newHarness(t)
		h.sys.MismatchImages = test.mismatch
		c := h.withSession(t, xrt.SessionInfo{})

		info := rgbaInfo
		info.Format = test.format
		_, err := c.SwapchainCreate(t.Context(), info)
		wantType(t, "TestSwapchainCreateErrors("+test.name+")", err, test.want)

		if n := h.sys.Compositors()[0].LiveSwapchains(); n != 0 {
			t.Errorf("[TestSwapchainCreateErrors(%s)]: live swapchains = %d, want 0", test.name, n)
		}
	}
}

func TestSwapchainImages(t *testing.T) {
	ctx := t.Context()
	h := newHarness(t)
	c := h.withSession(t, xrt.SessionInfo{})

	sc, err := c.SwapchainCreate(ctx, rgbaInfo)
	if err != nil {
		t.Fatalf("[TestSwapchainImages]: SwapchainCreate: %s", err)
	}
	defer sc.Close()

	for want := range uint32(4) {
		got, err := c.SwapchainAcquireImage(ctx, sc.ID)
		if err != nil {
			t.Fatalf("[TestSwapchainImages]: AcquireImage: %s", err)
		}
		if got != want%3 {
			t.Errorf("[TestSwapchainImages]: AcquireImage = %d, want %d", got, want%3)
		}
		if err := c.SwapchainWaitImage(ctx, sc.ID, 1000, got); err != nil {
			t.Errorf("[TestSwapchainImages]: WaitImage: %s", err)
		}
		if err := c.SwapchainReleaseImage(ctx, sc.ID, got); err != nil {
			t.Errorf("[TestSwapchainImages]: ReleaseImage: %s", err)
		}
	}

	_, err = c.SwapchainAcquireImage(ctx, sc.ID+1)
	wantType(t, "TestSwapchainImages(unknown swapchain)", err, errors.TypeInvalidHandle)
}

func TestSwapchainImport(t *testing.T) {
	ctx := t.Context()
	h := newHarness(t)
	c := h.withSession(t, xrt.SessionInfo{})

	var images []*os.File
	for range 2 {
		f, err := os.CreateTemp(t.TempDir(), "image")
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		images = append(images, f)
	}

	sc, err := c.SwapchainImport(ctx, rgbaInfo, 8192, true, images)
	if err != nil {
		t.Fatalf("[TestSwapchainImport]: SwapchainImport: %s", err)
	}
	want := protocol.SwapchainReply{ID: 0, ImageCount: 2, Size: 8192, UseDedicatedAllocation: true}
	if diff := pretty.Compare(want, sc.SwapchainReply); diff != "" {
		t.Errorf("[TestSwapchainImport]: reply -want/+got:\n%s", diff)
	}
	if n := h.sys.Compositors()[0].LiveSwapchains(); n != 1 {
		t.Errorf("[TestSwapchainImport]: live swapchains = %d, want 1", n)
	}

	_, err = c.SwapchainImport(ctx, rgbaInfo, 8192, false, nil)
	wantType(t, "TestSwapchainImport(no images)", err, errors.TypeParameter)
}

func TestSemaphores(t *testing.T) {
	ctx := t.Context()
	h := newHarness(t)
	c := h.withSession(t, xrt.SessionInfo{})

	for i := range protocol.MaxClientSemaphores {
		id, f, err := c.SemaphoreCreate(ctx)
		if err != nil {
			t.Fatalf("[TestSemaphores]: SemaphoreCreate %d: %s", i, err)
		}
		f.Close()
		if id != uint32(i) {
			t.Errorf("[TestSemaphores]: SemaphoreCreate %d returned id %d", i, id)
		}
	}
	_, _, err := c.SemaphoreCreate(ctx)
	wantType(t, "TestSemaphores(full)", err, errors.TypeResourceExhausted)

	if err := c.SemaphoreDestroy(ctx, 2); err != nil {
		t.Fatalf("[TestSemaphores]: SemaphoreDestroy: %s", err)
	}
	wantType(t, "TestSemaphores(double destroy)", c.SemaphoreDestroy(ctx, 2), errors.TypeInvalidHandle)

	id, f, err := c.SemaphoreCreate(ctx)
	if err != nil {
		t.Fatalf("[TestSemaphores]: SemaphoreCreate after destroy: %s", err)
	}
	f.Close()
	if id&indexMask != 2 || id == 2 {
		t.Errorf("[TestSemaphores]: reused slot got handle %#x, want slot 2 under a new generation", id)
	}
}

func TestLayerSync(t *testing.T) {
	ctx := t.Context()
	h := newHarness(t)
	c := h.withSession(t, xrt.SessionInfo{})
	region, err := c.MapShm(ctx)
	if err != nil {
		t.Fatalf("[TestLayerSync]: MapShm: %s", err)
	}
	comp := h.sys.Compositors()[0]

	var ids [2]uint32
	for i := range ids {
		sc, err := c.SwapchainCreate(ctx, rgbaInfo)
		if err != nil {
			t.Fatalf("[TestLayerSync]: SwapchainCreate: %s", err)
		}
		sc.Close()
		ids[i] = sc.ID
	}

	// The ring wraps: after k syncs starting at slot 0 the free slot is k mod N.
	slot := uint32(0)
	const syncs = protocol.MaxSlots + 3
	for k := 1; k <= syncs; k++ {
		s := &region.Layout().Slots[slot]
		s.DisplayTimeNs = int64(k)
		s.EnvBlendMode = xrt.BlendModeOpaque
		s.LayerCount = 2
		s.Layers[0].DeviceID = 0
		s.Layers[0].SwapchainIDs = [xrt.MaxLayerSwapchains]uint32{ids[0], ids[1]}
		s.Layers[0].Data.Type = xrt.LayerProjection
		s.Layers[1].DeviceID = 0
		s.Layers[1].SwapchainIDs = [xrt.MaxLayerSwapchains]uint32{ids[1]}
		s.Layers[1].Data.Type = xrt.LayerQuad

		var syncFile *os.File
		if k == 1 {
			if syncFile, err = os.CreateTemp(t.TempDir(), "sync"); err != nil {
				t.Fatal(err)
			}
		}
		next, err := c.LayerSync(ctx, slot, int64(k), syncFile)
		if err != nil {
			t.Fatalf("[TestLayerSync]: LayerSync %d: %s", k, err)
		}
		if want := uint32(k % protocol.MaxSlots); next != want {
			t.Fatalf("[TestLayerSync]: LayerSync %d returned slot %d, want %d", k, next, want)
		}
		slot = next
	}

	frames := comp.Frames()
	if len(frames) != syncs {
		t.Fatalf("[TestLayerSync]: compositor saw %d frames, want %d", len(frames), syncs)
	}
	want := mock.Frame{
		ID:            1,
		DisplayTimeNs: 1,
		Blend:         xrt.BlendModeOpaque,
		Layers:        []xrt.LayerType{xrt.LayerProjection, xrt.LayerQuad},
		Synced:        true,
	}
	if diff := pretty.Compare(want, frames[0]); diff != "" {
		t.Errorf("[TestLayerSync]: first frame -want/+got:\n%s", diff)
	}
	if frames[1].Synced {
		t.Errorf("[TestLayerSync]: second frame was synced without a sync handle")
	}

	bad := []struct {
		name   string
		modify func(s *shm.LayerSlot)
		want   errors.Type
	}{
		{
			name:   "unknown layer type",
			modify: func(s *shm.LayerSlot) { s.Layers[0].Data.Type = xrt.LayerType(99) },
			want:   errors.TypeUnknownLayer,
		},
		{
			name:   "unknown swapchain",
			modify: func(s *shm.LayerSlot) { s.Layers[1].SwapchainIDs[0] = 31 },
			want:   errors.TypeInvalidHandle,
		},
		{
			name:   "unknown device",
			modify: func(s *shm.LayerSlot) { s.Layers[0].DeviceID = 7 },
			want:   errors.TypeInvalidHandle,
		},
		{
			name:   "too many layers",
			modify: func(s *shm.LayerSlot) { s.LayerCount = protocol.MaxLayers + 1 },
			want:   errors.TypeParameter,
		},
	}
	for _, test := range bad {
		s := &region.Layout().Slots[slot]
		good := *s
		test.modify(s)
		_, err := c.LayerSync(ctx, slot, 1, nil)
		wantType(t, "TestLayerSync("+test.name+")", err, test.want)
		*s = good
	}

	_, err = c.LayerSync(ctx, protocol.MaxSlots, 1, nil)
	wantType(t, "TestLayerSync(slot out of range)", err, errors.TypeInvalidHandle)
}

func TestIOGating(t *testing.T) {
	ctx := t.Context()
	h := newHarness(t)
	c := h.connect(t)
	region, err := c.MapShm(ctx)
	if err != nil {
		t.Fatalf("[TestIOGating]: MapShm: %s", err)
	}
	const hmdID, leftID = 0, 1

	// With I/O on, the published inputs are the device's.
	if err := c.UpdateInput(ctx, leftID); err != nil {
		t.Fatalf("[TestIOGating]: UpdateInput: %s", err)
	}
	if diff := pretty.Compare(h.left.Inputs(), region.Layout().DeviceInputs(leftID)); diff != "" {
		t.Errorf("[TestIOGating]: published inputs -want/+got:\n%s", diff)
	}
	grip, err := c.TrackedPose(ctx, leftID, xrt.InputSimpleGripPose, 0)
	if err != nil {
		t.Fatalf("[TestIOGating]: TrackedPose: %s", err)
	}
	if grip.Pose.Position.Y != 1.2 {
		t.Errorf("[TestIOGating]: grip pose = %+v, want y 1.2", grip.Pose)
	}

	// I/O off, the client still holds active inputs from the last update: poses read as zero.
	if err := c.ToggleIOClient(ctx, 0); err != nil {
		t.Fatalf("[TestIOGating]: ToggleIOClient: %s", err)
	}
	grip, err = c.TrackedPose(ctx, leftID, xrt.InputSimpleGripPose, 0)
	if err != nil {
		t.Fatalf("[TestIOGating]: gated TrackedPose: %s", err)
	}
	if diff := pretty.Compare(xrt.SpaceRelation{}, grip); diff != "" {
		t.Errorf("[TestIOGating]: gated pose -want/+got:\n%s", diff)
	}

	// The next update publishes zeroed inputs, and the pose is no longer active.
	if err := c.UpdateInput(ctx, leftID); err != nil {
		t.Fatalf("[TestIOGating]: gated UpdateInput: %s", err)
	}
	for i, in := range region.Layout().DeviceInputs(leftID) {
		want := xrt.Input{Name: h.left.Inputs()[i].Name}
		if diff := pretty.Compare(want, in); diff != "" {
			t.Errorf("[TestIOGating]: gated input %d -want/+got:\n%s", i, diff)
		}
	}
	_, err = c.TrackedPose(ctx, leftID, xrt.InputSimpleGripPose, 0)
	wantType(t, "TestIOGating(gated inactive pose)", err, errors.TypePoseNotActive)
	_, err = c.HandTracking(ctx, leftID, xrt.InputSimpleAimPose, 0)
	wantType(t, "TestIOGating(gated inactive hand tracking)", err, errors.TypePoseNotActive)

	// Outputs still reach the device.
	if err := c.SetOutput(ctx, leftID, xrt.OutputSimpleVibration, xrt.OutputValue{Amplitude: 1}); err != nil {
		t.Fatalf("[TestIOGating]: SetOutput with I/O off: %s", err)
	}
	if n := len(h.left.OutputsSet()); n != 1 {
		t.Errorf("[TestIOGating]: device saw %d outputs with I/O off, want 1", n)
	}

	// The head pose is exempt.
	if err := c.UpdateInput(ctx, hmdID); err != nil {
		t.Fatalf("[TestIOGating]: UpdateInput(hmd): %s", err)
	}
	head := region.Layout().DeviceInputs(hmdID)[0]
	if head.Name != xrt.InputGenericHeadPose || !head.Active {
		t.Errorf("[TestIOGating]: gated head pose input = %+v, want active", head)
	}
	rel, err := c.TrackedPose(ctx, hmdID, xrt.InputGenericHeadPose, 0)
	if err != nil {
		t.Fatalf("[TestIOGating]: head TrackedPose: %s", err)
	}
	if rel.Pose.Position.Y != 1.6 {
		t.Errorf("[TestIOGating]: head pose = %+v, want live pose", rel.Pose)
	}

	// Back on, but the client's view still has the pose inactive until it updates.
	if err := c.ToggleIOClient(ctx, 0); err != nil {
		t.Fatalf("[TestIOGating]: ToggleIOClient: %s", err)
	}
	_, err = c.TrackedPose(ctx, leftID, xrt.InputSimpleGripPose, 0)
	wantType(t, "TestIOGating(pose inactive in client view)", err, errors.TypePoseNotActive)
	if err := c.UpdateInput(ctx, leftID); err != nil {
		t.Fatalf("[TestIOGating]: UpdateInput after I/O on: %s", err)
	}
	grip, err = c.TrackedPose(ctx, leftID, xrt.InputSimpleGripPose, 0)
	if err != nil {
		t.Fatalf("[TestIOGating]: TrackedPose after update: %s", err)
	}
	if grip.Pose.Position.Y != 1.2 {
		t.Errorf("[TestIOGating]: grip pose after update = %+v, want y 1.2", grip.Pose)
	}
	if err := c.SetOutput(ctx, leftID, xrt.OutputSimpleVibration, xrt.OutputValue{Amplitude: 1}); err != nil {
		t.Fatalf("[TestIOGating]: SetOutput: %s", err)
	}
	if n := len(h.left.OutputsSet()); n != 2 {
		t.Errorf("[TestIOGating]: device saw %d outputs, want 2", n)
	}

	// Device gating applies to every client.
	if err := c.ToggleIODevice(ctx, leftID); err != nil {
		t.Fatalf("[TestIOGating]: ToggleIODevice: %s", err)
	}
	grip, err = c.TrackedPose(ctx, leftID, xrt.InputSimpleGripPose, 0)
	if err != nil {
		t.Fatalf("[TestIOGating]: TrackedPose on a gated device: %s", err)
	}
	if diff := pretty.Compare(xrt.SpaceRelation{}, grip); diff != "" {
		t.Errorf("[TestIOGating]: device gated pose -want/+got:\n%s", diff)
	}
	if err := c.UpdateInput(ctx, leftID); err != nil {
		t.Fatalf("[TestIOGating]: UpdateInput on a gated device: %s", err)
	}
	_, err = c.TrackedPose(ctx, leftID, xrt.InputSimpleGripPose, 0)
	wantType(t, "TestIOGating(device gated)", err, errors.TypePoseNotActive)
	wantType(t, "TestIOGating(unknown device)", c.ToggleIODevice(ctx, 7), errors.TypeInvalidHandle)
}

func TestDeviceCalls(t *testing.T) {
	ctx := t.Context()
	h := newHarness(t)
	c := h.connect(t)

	sysInfo, err := c.SystemCompositorInfo(ctx)
	if err != nil {
		t.Fatalf("[TestDeviceCalls]: SystemCompositorInfo: %s", err)
	}
	if diff := pretty.Compare(h.sys.Info(), sysInfo); diff != "" {
		t.Errorf("[TestDeviceCalls]: system compositor info -want/+got:\n%s", diff)
	}

	pose, err := c.ViewPose(ctx, 0, xrt.Vec3{X: 0.064}, 1)
	if err != nil {
		t.Fatalf("[TestDeviceCalls]: ViewPose: %s", err)
	}
	if pose.Position.X != 0.032 {
		t.Errorf("[TestDeviceCalls]: right view x = %v, want 0.032", pose.Position.X)
	}

	_, err = c.ViewPose(ctx, 1, xrt.Vec3{X: 0.064}, 0)
	wantType(t, "TestDeviceCalls(view pose of controller)", err, errors.TypeUnsupported)

	_, err = c.TrackedPose(ctx, 1, xrt.InputSimpleSelectClick, 0)
	wantType(t, "TestDeviceCalls(pose of a button)", err, errors.TypePoseNotActive)

	_, err = c.TrackedPose(ctx, 0, xrt.InputSimpleGripPose, 0)
	wantType(t, "TestDeviceCalls(input the device does not have)", err, errors.TypeParameter)

	_, err = c.TrackedPose(ctx, 5, xrt.InputSimpleGripPose, 0)
	wantType(t, "TestDeviceCalls(unknown device)", err, errors.TypeInvalidHandle)

	hand, err := c.HandTracking(ctx, 1, xrt.InputSimpleGripPose, 77)
	if err != nil {
		t.Fatalf("[TestDeviceCalls]: HandTracking: %s", err)
	}
	if hand.TimestampNs != 77 {
		t.Errorf("[TestDeviceCalls]: hand tracking timestamp = %d, want 77", hand.TimestampNs)
	}

	if h.left.Updates() != 0 {
		t.Errorf("[TestDeviceCalls]: device updated without UpdateInput")
	}
}
