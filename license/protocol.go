package license

import (
	"encoding/json"
	"time"

	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/model"
)

// validateRequest is the body of a validate_bot call.
type validateRequest struct {
	LicenseKey string `json:"license_key"`
	Product    string `json:"product"`
}

func marshalValidateRequest(licenseKey, product string) ([]byte, error) {
	return json.Marshal(validateRequest{LicenseKey: licenseKey, Product: product})
}

// validateResponse accepts both spellings the license manager has used for
// its two boolean fields across versions.
type validateResponse struct {
	LicenseValid  *bool          `json:"license_valid"`
	Valid         *bool          `json:"valid"`
	BotAssigned   *bool          `json:"bot_assigned"`
	BotAssociated *bool          `json:"bot_associated"`
	Details       map[string]any `json:"details"`
}

func decodeValidateResponse(body []byte) (model.LicenseState, error) {
	var resp validateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.LicenseState{}, errors.Wrap(err, "license: decoding validate_bot response")
	}

	valid := firstBool(resp.LicenseValid, resp.Valid)
	botAssigned := firstBool(resp.BotAssigned, resp.BotAssociated)

	return model.LicenseState{
		Valid:             valid,
		BotAssigned:       botAssigned,
		Details:           resp.Details,
		LastValidated:     time.Now(),
		BackoffMultiplier: 1,
	}, nil
}

func firstBool(vals ...*bool) bool {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return false
}
