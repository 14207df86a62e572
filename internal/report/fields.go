package report

// Field names as they appear in warnings and in PartAnalysis JSON.
const (
	fieldClassName           = "class_name"
	fieldPreciseName         = "precise_part_name"
	fieldCategory            = "category"
	fieldManufacturer        = "manufacturer"
	fieldMaterial            = "material_composition"
	fieldConfidence          = "confidence_score"
	fieldTechnicalData       = "technical_data_sheet"
	fieldVehicles            = "compatible_vehicles"
	fieldPrice               = "estimated_price"
	fieldSuppliers           = "suppliers"
	fieldDiagnostics         = "diagnostics"
	fieldConfidenceBreakdown = "confidence_breakdown"
)

// aliases maps each field to the normalised keys models use for it.
var aliases = map[string][]string{
	fieldClassName:    {"class_name", "class", "part_class", "part_type", "type"},
	fieldPreciseName:  {"precise_part_name", "precise_name", "part_name", "name", "identified_part"},
	fieldCategory:     {"category", "part_category"},
	fieldManufacturer: {"manufacturer", "brand", "oem", "maker"},
	fieldMaterial:     {"material_composition", "material", "materials"},
	fieldConfidence:   {"confidence_score", "confidence", "confidence_level", "overall_confidence"},
	fieldTechnicalData: {
		"technical_data_sheet", "technical_data", "specifications", "specs", "technical_specifications",
	},
	fieldVehicles: {"compatible_vehicles", "compatibility", "vehicle_compatibility", "compatible_models"},
	fieldPrice: {
		"estimated_price", "pricing", "price_estimates", "prices", "pricing_and_availability", "price",
	},
	fieldSuppliers:           {"suppliers", "where_to_buy", "vendors", "sellers"},
	fieldDiagnostics:         {"diagnostics", "diagnostic_information", "diagnosis"},
	fieldConfidenceBreakdown: {"confidence_breakdown", "confidence_scores", "confidence_details"},
}

// Keys that can appear either inside diagnostics or at the top level.
var (
	failureModeKeys  = []string{"failure_modes", "common_failures", "common_failure_modes", "failure_symptoms", "symptoms"}
	fieldTestKeys    = []string{"field_tests", "tests", "testing", "diagnostic_tests", "how_to_test"}
	installationKeys = []string{"installation_notes", "installation", "install_notes", "installation_tips"}
)

// Confidence breakdown dimensions.
var (
	overallKeys     = []string{"overall", "overall_confidence", "total"}
	visualKeys      = []string{"visual_match", "visual", "visual_confidence"}
	dimensionalKeys = []string{"dimensional_match", "dimensional", "dimensions", "dimensional_confidence"}
	supplierKeys    = []string{"supplier_data", "supplier", "suppliers", "supplier_confidence"}
)

// Price conditions.
var (
	priceNewKeys         = []string{"new", "new_price", "oem", "brand_new"}
	priceUsedKeys        = []string{"used", "used_price", "second_hand"}
	priceRefurbishedKeys = []string{"refurbished", "refurbished_price", "remanufactured", "rebuilt"}
)

// Supplier entry fields.
var (
	supplierNameKeys     = []string{"name", "supplier", "supplier_name", "vendor", "store", "seller", "company"}
	supplierURLKeys      = []string{"url", "website", "link", "site", "web", "homepage"}
	supplierPriceKeys    = []string{"price_range", "price", "pricing", "cost", "estimated_price"}
	supplierShippingKeys = []string{"shipping_region", "shipping", "region", "ships_to", "location"}
	supplierContactKeys  = []string{"contact_channel", "contact", "phone", "email", "contact_info"}
)

// containerKeys name objects the model sometimes nests the identity fields under.
var containerKeys = []string{
	"part_identification", "identification", "part", "part_info", "analysis",
	"result", "identity", "part_details",
}

// fieldOrder is the order warnings are reported in.
var fieldOrder = []string{
	fieldClassName, fieldPreciseName, fieldCategory, fieldManufacturer, fieldMaterial,
	fieldConfidence, fieldTechnicalData, fieldVehicles, fieldPrice, fieldSuppliers,
	fieldDiagnostics, fieldConfidenceBreakdown,
}
