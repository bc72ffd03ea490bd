package smile

import "errors"

var (
	// ErrConnectionFailed indicates the gateway could not be reached after the
	// transport's bounded retries.
	ErrConnectionFailed = errors.New("smile: connection failed")

	// ErrInvalidAuthentication indicates the gateway rejected the credentials.
	ErrInvalidAuthentication = errors.New("smile: invalid authentication")

	// ErrInvalidXML indicates the gateway returned a response that could not be
	// parsed as XML.
	ErrInvalidXML = errors.New("smile: invalid xml")

	// ErrResponse indicates the gateway returned an empty body, an <error> tag,
	// or a body without the expected vendor markers.
	ErrResponse = errors.New("smile: response error")

	// ErrUnsupportedDevice indicates the connected gateway's model or firmware
	// is not in the supported table. Fatal during Connect.
	ErrUnsupportedDevice = errors.New("smile: unsupported device")

	// ErrInvalidSetup indicates an invalid installation, e.g. an Anna connected
	// behind an Adam.
	ErrInvalidSetup = errors.New("smile: invalid setup")

	// ErrInvalidOperation indicates a caller mistake during a control operation
	// (unknown preset, unknown schedule, locked relay, contradictory setpoints).
	// Never transient, never retried.
	ErrInvalidOperation = errors.New("smile: invalid operation")
)
