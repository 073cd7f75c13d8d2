package request

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	apperrors "github.com/alexjbarnes/tmc-client/internal/errors"
	"github.com/alexjbarnes/tmc-client/internal/models"
	"github.com/alexjbarnes/tmc-client/internal/transport"
)

// BusinessError is a 2xx response whose envelope reports success=false.
// The envelope is kept verbatim.
type BusinessError struct {
	Envelope models.Envelope
}

func (e *BusinessError) Error() string {
	if e.Envelope.Message == "" {
		return "request rejected by server"
	}

	return e.Envelope.Message
}

// parseEnvelope extracts the data payload from a response envelope.
// A missing data field yields JSON null.
func parseEnvelope(body []byte) (json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not JSON", apperrors.ErrUnexpectedResponse)
	}

	success := gjson.GetBytes(body, "success")
	if !success.Exists() {
		return nil, fmt.Errorf("%w: missing success flag", apperrors.ErrUnexpectedResponse)
	}

	if success.Bool() {
		data := gjson.GetBytes(body, "data")
		if !data.Exists() {
			return json.RawMessage("null"), nil
		}

		return json.RawMessage(data.Raw), nil
	}

	var env models.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decoding envelope: %w", apperrors.ErrUnexpectedResponse, err)
	}

	return nil, &BusinessError{Envelope: env}
}

// Envelope converts any error returned by a Client into the
// {success, message, data} shape UI code renders. A nil error yields a
// successful, empty envelope.
func Envelope(err error) models.Envelope {
	if err == nil {
		return models.Envelope{Success: true}
	}

	var be *BusinessError
	if errors.As(err, &be) {
		return be.Envelope
	}

	var te *transport.Error

	var msg string

	switch {
	case errors.Is(err, apperrors.ErrAuthExpired):
		msg = apperrors.ErrAuthExpired.Error()
	case errors.As(err, &te) && te.Kind == transport.KindNetwork:
		msg = apperrors.ErrNetwork.Error()
	case errors.As(err, &te) && te.Kind == transport.KindHTTP:
		msg = fmt.Sprintf("request failed: %d", te.Status)
	default:
		msg = err.Error()
	}

	return models.Envelope{Success: false, Message: msg}
}

// Decode unmarshals a Client result into T. It passes err through
// untouched, so calls can be wrapped directly:
//
//	user, err := request.Decode[models.UserInfo](c.Get(ctx, "/api/me", nil))
func Decode[T any](data json.RawMessage, err error) (T, error) {
	var v T

	if err != nil {
		return v, err
	}

	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}

	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: decoding data: %w", apperrors.ErrUnexpectedResponse, err)
	}

	return v, nil
}
