package dto

// ValidateStoresRequest checks store codes typed or pasted by the user.
type ValidateStoresRequest struct {
	Codes []string `json:"codes" binding:"required"`
}

// StoreListingParseResponse reports the store codes read from an uploaded
// workbook split by whether they exist.
type StoreListingParseResponse struct {
	StoreCodes []string `json:"store_codes"`
	Valid      []string `json:"valid"`
	Invalid    []string `json:"invalid"`
}
