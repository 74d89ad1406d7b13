package crate

// Type labels and property names of the interchange profile. These are
// the compacted schema.org / Darwin Core terms the RO-Crate context
// maps onto, shared by the validator, the resolver and every adapter.
const (
	// DescriptorID is the fixed id of the self-describing entry node.
	DescriptorID = "ro-crate-metadata.json"

	TypeCreativeWork      = "CreativeWork"
	TypeDataset           = "Dataset"
	TypePerson            = "Person"
	TypeOrganization      = "Organization"
	TypeBioSample         = "BioSample"
	TypeTaxon             = "Taxon"
	TypeLabProtocol       = "LabProtocol"
	TypeDefinedTerm       = "DefinedTerm"
	TypeGrant             = "Grant"
	TypeScholarlyArticle  = "ScholarlyArticle"
	TypeQuantitativeValue = "QuantitativeValue"

	PropConformsTo           = "conformsTo"
	PropAbout                = "about"
	PropName                 = "name"
	PropDescription          = "description"
	PropIdentifier           = "identifier"
	PropDatePublished        = "datePublished"
	PropLicense              = "license"
	PropURL                  = "url"
	PropAuthor               = "author"
	PropPublisher            = "publisher"
	PropEmail                = "email"
	PropAffiliation          = "affiliation"
	PropAddress              = "address"
	PropKeywords             = "keywords"
	PropCitation             = "citation"
	PropFunder               = "funder"
	PropSize                 = "size"
	PropThumbnailURL         = "thumbnailUrl"
	PropTaxonomicRange       = "taxonomicRange"
	PropScientificName       = "scientificName"
	PropVernacularName       = "vernacularName"
	PropHasCellLine          = "hasCellLine"
	PropMeasurementMethod    = "measurementMethod"
	PropMeasurementTechnique = "measurementTechnique"
	PropLabEquipment         = "labEquipment"
	PropValue                = "value"
	PropUnitCode             = "unitCode"
	PropUnitText             = "unitText"
	PropPubmedID             = "pubmed_id"
	PropPmcID                = "pmc_id"
	PropAuthorNames          = "authorNames"
)

// UN/CEFACT unit codes disambiguating the quantitative values reachable
// via the root's size edge.
const (
	UnitCodeCount = "C62" // dimensionless count of files
	UnitCodeBytes = "AD"  // byte
)

// ProfileBase is the profile family the descriptor must conform to;
// the trailing path component carries the version.
const ProfileBase = "https://w3id.org/ro/crate/"

// MinProfileVersion is the lowest accepted profile version.
const MinProfileVersion = "1.1"
