package evacalor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	pathAppSignup       = "/appSignup"
	pathUserLogin       = "/userLogin"
	pathRefreshToken    = "/refreshToken"
	pathDeviceList      = "/deviceList"
	pathDeviceInfo      = "/deviceGetInfo"
	pathRegistersMap    = "/deviceGetRegistersMap"
	pathBufferReading   = "/deviceGetBufferReading"
	pathDeviceJobStatus = "/deviceJobStatus/"
	pathRequestWriting  = "/deviceRequestWriting"
)

const (
	headerAccept        = "application/json, text/javascript, */*; q=0.01"
	headerLocal         = "local"
	headerAuthorization = "Authorization"
)

// Fixed watermark the vendor app sends so the platform always returns the
// full registers map.
const registersMapLastUpdate = "2018-06-03T08:59:54.043"

// Connection is an authenticated handle to the Agua IOT platform. It owns
// one session and the account's devices, kept in the order the platform
// lists them.
//
// A Connection is not safe for concurrent use. The platform holds
// per-session state server-side, and overlapping calls can race a token
// re-authentication against an in-flight request. Sequence calls on one
// Connection, or use one Connection per account.
type Connection struct {
	cfg        Config
	httpClient *http.Client
	sess       session

	devices []*deviceState
	byID    map[string]*deviceState
}

// deviceState is the registry entry backing one device: its identity row
// from the device list, its register map, and the last-known-good
// snapshot.
type deviceState struct {
	entry deviceEntry
	regs  registerMap
	snap  Device
}

// Connect registers the installation, authenticates, and eagerly loads
// every device on the account, register maps and first readings included.
// It returns only once each device has a populated snapshot, so Devices
// is immediately meaningful.
func Connect(ctx context.Context, cfg Config) (*Connection, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	c := &Connection{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
			// The vendor app never follows redirects; a redirect here is
			// a misrouted call and must surface as an error.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		byID: make(map[string]*deviceState),
	}

	if err := c.signup(ctx); err != nil {
		return nil, err
	}
	if err := c.login(ctx); err != nil {
		return nil, err
	}
	if err := c.loadDevices(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// send issues one platform request carrying the base headers plus extra.
// Transport failures map to NetworkError; status handling stays with the
// caller.
func (c *Connection) send(ctx context.Context, method, path string, payload any, extra map[string]string) (*http.Response, error) {
	op := strings.TrimPrefix(path, "/")

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &ServiceError{Op: op, Message: fmt.Sprintf("encoding request: %v", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", headerAccept)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "file://")
	req.Header.Set("id_brand", c.cfg.BrandID)
	req.Header.Set("customer_code", c.cfg.CustomerCode)
	for key, value := range extra {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	return resp, nil
}

// post sends an unauthorized call (signup, login, token refresh).
func (c *Connection) post(ctx context.Context, path string, payload any, extra map[string]string) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, path, payload, extra)
}

func (c *Connection) postAuthorized(ctx context.Context, op, path string, payload any, out any) error {
	return c.doAuthorized(ctx, op, http.MethodPost, path, payload, out)
}

func (c *Connection) getAuthorized(ctx context.Context, op, path string, out any) error {
	return c.doAuthorized(ctx, op, http.MethodGet, path, nil, out)
}

// doAuthorized sends an authorized call and decodes the 200 response into
// out. A 401 is recovered exactly once: invalidate the session, obtain a
// fresh token, retry; a second 401 surfaces as AuthError. Other non-200
// statuses surface as ServiceError with the trimmed body for diagnosis.
func (c *Connection) doAuthorized(ctx context.Context, op, method, path string, payload any, out any) error {
	if err := c.ensureValid(ctx); err != nil {
		return err
	}

	do := func() (*http.Response, error) {
		return c.send(ctx, method, path, payload, map[string]string{
			headerLocal:         "false",
			headerAuthorization: c.sess.currentToken(),
		})
	}

	resp, err := do()
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		authRecovery.Inc()
		c.sess.invalidate()
		if err := c.ensureValid(ctx); err != nil {
			return err
		}
		resp, err = do()
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return &AuthError{Op: op, StatusCode: http.StatusUnauthorized, Message: "authorization rejected after re-authentication"}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &ServiceError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ServiceError{Op: op, Message: fmt.Sprintf("decoding response: %v", err)}
	}
	return nil
}

// pollJob waits for an asynchronous device job to complete and returns its
// answer data. The platform queues buffer reads and writes towards the
// physical device; the job status endpoint reports "completed" once the
// device has answered. A poll answered with ServiceError keeps polling
// (the platform intermittently serves errors for jobs still in flight);
// NetworkError and AuthError abort.
func (c *Connection) pollJob(ctx context.Context, idRequest string) (map[string]any, error) {
	path := pathDeviceJobStatus + idRequest
	lastStatus := "unknown"

	for attempt := 0; attempt <= c.cfg.JobPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &NetworkError{Op: "deviceJobStatus", Err: ctx.Err()}
			case <-time.After(c.cfg.JobPollInterval):
			}
		}

		var status jobStatusResponse
		if err := c.getAuthorized(ctx, "deviceJobStatus", path, &status); err != nil {
			var serviceErr *ServiceError
			if errors.As(err, &serviceErr) {
				lastStatus = "error"
				continue
			}
			return nil, err
		}
		if status.JobAnswerStatus == "completed" {
			return status.JobAnswerData, nil
		}
		lastStatus = status.JobAnswerStatus
	}
	return nil, &ServiceError{
		Op:      "deviceJobStatus",
		Message: fmt.Sprintf("job %s still %q after %d polls", idRequest, lastStatus, c.cfg.JobPollAttempts+1),
	}
}

func (c *Connection) fetchDeviceList(ctx context.Context) ([]deviceEntry, error) {
	var out deviceListResponse
	if err := c.postAuthorized(ctx, "deviceList", pathDeviceList, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Device, nil
}

func (c *Connection) fetchRegistersMapID(ctx context.Context, entry deviceEntry) (int, error) {
	payload := deviceInfoRequest{IDDevice: entry.IDDevice, IDProduct: entry.IDProduct}
	var out deviceInfoResponse
	if err := c.postAuthorized(ctx, "deviceGetInfo", pathDeviceInfo, payload, &out); err != nil {
		return 0, err
	}
	if len(out.DeviceInfo) == 0 {
		return 0, &ServiceError{Op: "deviceGetInfo", Message: "device info response is empty"}
	}
	return out.DeviceInfo[0].IDRegistersMap, nil
}

func (c *Connection) fetchRegisterMap(ctx context.Context, entry deviceEntry, mapID int) (registerMap, error) {
	payload := registersMapRequest{
		IDDevice:   entry.IDDevice,
		IDProduct:  entry.IDProduct,
		LastUpdate: registersMapLastUpdate,
	}
	var out registersMapResponse
	if err := c.postAuthorized(ctx, "deviceGetRegistersMap", pathRegistersMap, payload, &out); err != nil {
		return nil, err
	}
	for _, m := range out.DeviceRegistersMap.RegistersMap {
		if m.ID == mapID {
			return newRegisterMap(m), nil
		}
	}
	return nil, &ServiceError{Op: "deviceGetRegistersMap", Message: fmt.Sprintf("no registers map with id %d", mapID)}
}

// readBuffer queues a buffer reading job for the device and returns the
// raw register values from the completed job answer.
func (c *Connection) readBuffer(ctx context.Context, entry deviceEntry) (readings, error) {
	payload := bufferReadingRequest{IDDevice: entry.IDDevice, IDProduct: entry.IDProduct, BufferID: 1}
	var out jobRequestResponse
	if err := c.postAuthorized(ctx, "deviceGetBufferReading", pathBufferReading, payload, &out); err != nil {
		return nil, err
	}
	if out.IDRequest == "" {
		return nil, &ServiceError{Op: "deviceGetBufferReading", Message: "response carries no request id"}
	}

	data, err := c.pollJob(ctx, out.IDRequest)
	if err != nil {
		return nil, err
	}
	r, err := decodeReadings(data)
	if err != nil {
		return nil, &ServiceError{Op: "deviceJobStatus", Message: err.Error()}
	}
	return r, nil
}

// writeRegister queues a write job for one register and waits for the
// device acknowledgement: a completed answer must carry a Cmd entry, or
// the device never executed the command.
func (c *Connection) writeRegister(ctx context.Context, entry deviceEntry, reg register, value int) error {
	payload := writeRequest{
		IDDevice:  entry.IDDevice,
		IDProduct: entry.IDProduct,
		Protocol:  "RWMSmaster",
		BitData:   []int{8},
		Endianess: []string{"L"},
		Items:     []int{reg.offset},
		Masks:     []int{reg.mask},
		Values:    []int{value},
	}
	var out jobRequestResponse
	if err := c.postAuthorized(ctx, "deviceRequestWriting", pathRequestWriting, payload, &out); err != nil {
		return err
	}
	if out.IDRequest == "" {
		return &ServiceError{Op: "deviceRequestWriting", Message: "response carries no request id"}
	}

	data, err := c.pollJob(ctx, out.IDRequest)
	if err != nil {
		return err
	}
	if _, ok := data["Cmd"]; !ok {
		return &ServiceError{Op: "deviceRequestWriting", Message: "job completed without command acknowledgement"}
	}
	return nil
}
