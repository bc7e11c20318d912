package geodat

import "fmt"

// Edition is the database type byte stored in the structure info block
// at the end of a legacy GeoIP database.
type Edition uint8

const (
	EditionCountry          Edition = 1
	EditionCityRev1         Edition = 2
	EditionRegionRev1       Edition = 3
	EditionISP              Edition = 4
	EditionOrg              Edition = 5
	EditionCityRev0         Edition = 6
	EditionRegionRev0       Edition = 7
	EditionProxy            Edition = 8
	EditionASNum            Edition = 9
	EditionNetSpeed         Edition = 10
	EditionDomain           Edition = 11
	EditionCountryV6        Edition = 12
	EditionLocationA        Edition = 13
	EditionAccuracyRadius   Edition = 14
	EditionLargeCountry     Edition = 17
	EditionLargeCountryV6   Edition = 18
	EditionASNumV6          Edition = 21
	EditionISPV6            Edition = 22
	EditionOrgV6            Edition = 23
	EditionDomainV6         Edition = 24
	EditionLocationAV6      Edition = 25
	EditionRegistrar        Edition = 26
	EditionRegistrarV6      Edition = 27
	EditionUserType         Edition = 28
	EditionUserTypeV6       Edition = 29
	EditionCityRev1V6       Edition = 30
	EditionCityRev0V6       Edition = 31
	EditionNetSpeedRev1     Edition = 32
	EditionNetSpeedRev1V6   Edition = 33
	EditionCountryConf      Edition = 34
	EditionCityConf         Edition = 35
	EditionRegionConf       Edition = 36
	EditionPostalConf       Edition = 37
	EditionAccuracyRadiusV6 Edition = 38
)

// Kind is the record variant a database can produce.
type Kind int

const (
	KindOther Kind = iota
	KindCountry
	KindCity
)

func (k Kind) String() string {
	switch k {
	case KindCountry:
		return "country"
	case KindCity:
		return "city"
	default:
		return "other"
	}
}

var editionNames = map[Edition]string{
	EditionCountry:          "GeoIP Country Edition",
	EditionCityRev1:         "GeoIP City Edition, Rev 1",
	EditionRegionRev1:       "GeoIP Region Edition, Rev 1",
	EditionISP:              "GeoIP ISP Edition",
	EditionOrg:              "GeoIP Organization Edition",
	EditionCityRev0:         "GeoIP City Edition, Rev 0",
	EditionRegionRev0:       "GeoIP Region Edition, Rev 0",
	EditionProxy:            "GeoIP Proxy Edition",
	EditionASNum:            "GeoIP ASNum Edition",
	EditionNetSpeed:         "GeoIP Netspeed Edition",
	EditionDomain:           "GeoIP Domain Name Edition",
	EditionCountryV6:        "GeoIP Country V6 Edition",
	EditionLocationA:        "GeoIP LocationID ASCII Edition",
	EditionAccuracyRadius:   "GeoIP Accuracy Radius Edition",
	EditionLargeCountry:     "GeoIP Large Country Edition",
	EditionLargeCountryV6:   "GeoIP Large Country V6 Edition",
	EditionASNumV6:          "GeoIP ASNum V6 Edition",
	EditionISPV6:            "GeoIP ISP V6 Edition",
	EditionOrgV6:            "GeoIP Organization V6 Edition",
	EditionDomainV6:         "GeoIP Domain Name V6 Edition",
	EditionLocationAV6:      "GeoIP LocationID ASCII V6 Edition",
	EditionRegistrar:        "GeoIP Registrar Edition",
	EditionRegistrarV6:      "GeoIP Registrar V6 Edition",
	EditionUserType:         "GeoIP UserType Edition",
	EditionUserTypeV6:       "GeoIP UserType V6 Edition",
	EditionCityRev1V6:       "GeoIP City Edition V6, Rev 1",
	EditionCityRev0V6:       "GeoIP City Edition V6, Rev 0",
	EditionNetSpeedRev1:     "GeoIP Netspeed Edition, Rev 1",
	EditionNetSpeedRev1V6:   "GeoIP Netspeed Edition V6, Rev1",
	EditionCountryConf:      "GeoIP Country Confidence Edition",
	EditionCityConf:         "GeoIP City Confidence Edition",
	EditionRegionConf:       "GeoIP Region Confidence Edition",
	EditionPostalConf:       "GeoIP Postal Confidence Edition",
	EditionAccuracyRadiusV6: "GeoIP Accuracy Radius Edition V6",
}

func (e Edition) String() string {
	if name, ok := editionNames[e]; ok {
		return name
	}
	return fmt.Sprintf("unknown edition %d", uint8(e))
}

// Kind reports which record variant the edition stores.
func (e Edition) Kind() Kind {
	switch e {
	case EditionCountry, EditionCountryV6, EditionLargeCountry, EditionLargeCountryV6:
		return KindCountry
	case EditionCityRev0, EditionCityRev1, EditionCityRev0V6, EditionCityRev1V6:
		return KindCity
	default:
		return KindOther
	}
}

// IsV6 reports whether the edition indexes 128-bit addresses.
func (e Edition) IsV6() bool {
	switch e {
	case EditionCountryV6, EditionLargeCountryV6, EditionASNumV6, EditionISPV6,
		EditionOrgV6, EditionDomainV6, EditionLocationAV6, EditionRegistrarV6,
		EditionUserTypeV6, EditionCityRev1V6, EditionCityRev0V6,
		EditionNetSpeedRev1V6, EditionAccuracyRadiusV6:
		return true
	}
	return false
}

// hasMetroCode reports whether city records carry the dma/area combo.
func (e Edition) hasMetroCode() bool {
	return e == EditionCityRev1 || e == EditionCityRev1V6
}

const (
	countryBegin      = 16776960
	largeCountryBegin = 16515072
	stateBeginRev0    = 16700000
	stateBeginRev1    = 16000000

	standardRecordLength = 3
	orgRecordLength      = 4
	segmentRecordLength  = 3
)

// segmentLayout describes how the segment count of an edition is derived.
type segmentLayout int

const (
	layoutUnknown segmentLayout = iota
	layoutFixed
	layoutStored
)

func (e Edition) layout() (segmentLayout, uint32, int) {
	switch e {
	case EditionCountry, EditionProxy, EditionNetSpeed, EditionCountryV6:
		return layoutFixed, countryBegin, standardRecordLength
	case EditionLargeCountry, EditionLargeCountryV6:
		return layoutFixed, largeCountryBegin, standardRecordLength
	case EditionRegionRev0:
		return layoutFixed, stateBeginRev0, standardRecordLength
	case EditionRegionRev1:
		return layoutFixed, stateBeginRev1, standardRecordLength
	case EditionOrg, EditionOrgV6, EditionDomain, EditionDomainV6, EditionISP, EditionISPV6:
		return layoutStored, 0, orgRecordLength
	case EditionCityRev0, EditionCityRev1, EditionCityRev0V6, EditionCityRev1V6,
		EditionRegistrar, EditionRegistrarV6, EditionUserType, EditionUserTypeV6,
		EditionASNum, EditionASNumV6, EditionNetSpeedRev1, EditionNetSpeedRev1V6,
		EditionLocationA, EditionLocationAV6, EditionAccuracyRadius, EditionAccuracyRadiusV6,
		EditionCityConf, EditionCountryConf, EditionRegionConf, EditionPostalConf:
		return layoutStored, 0, standardRecordLength
	}
	return layoutUnknown, 0, 0
}
