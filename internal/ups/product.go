package ups

const unknownValue = "unknown"

// ProductInfo is the identity block printed by the info dump
type ProductInfo struct {
	Vendor    string
	Model     string
	ProductID string
	Serial    string
	VendorID  string
}

// ProductInfoFrom extracts the identity fields from raw. Absent or empty
// values are reported as "unknown".
func ProductInfoFrom(raw RawStatus) ProductInfo {
	get := func(key string) string {
		if v, ok := raw[key]; ok && v != "" {
			return v
		}
		return unknownValue
	}
	return ProductInfo{
		Vendor:    get(KeyManufacturer),
		Model:     get(KeyModel),
		ProductID: get(KeyProductID),
		Serial:    get(KeySerial),
		VendorID:  get(KeyVendorID),
	}
}
