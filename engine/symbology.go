package engine

import "bytes"

// Symbology describes a barcode symbology known to the engines.
type Symbology struct {
	Type  int    // engine symbology type number
	Name  string // display name
	SymID byte   // vendor symbology ID character
	AIM   byte   // AIM code character (the "c" in "]cm")
}

// Symbology type numbers.
const (
	SymUnknown = iota
	SymEAN13
	SymEAN8
	SymGS1128
	SymCode128
	SymITF
	SymCode39
	SymQRCode
	SymDataMatrix
	SymPDF417
)

var symbologies = []Symbology{
	{Type: SymEAN13, Name: "EAN-13", SymID: 'd', AIM: 'E'},
	{Type: SymEAN8, Name: "EAN-8", SymID: 'D', AIM: 'E'},
	{Type: SymGS1128, Name: "GS1-128", SymID: 'I', AIM: 'C'},
	{Type: SymCode128, Name: "Code128", SymID: 'j', AIM: 'C'},
	{Type: SymITF, Name: "ITF", SymID: 'e', AIM: 'I'},
	{Type: SymCode39, Name: "Code39", SymID: 'b', AIM: 'A'},
	{Type: SymQRCode, Name: "QRCode", SymID: 's', AIM: 'Q'},
	{Type: SymDataMatrix, Name: "DataMatrix", SymID: 'w', AIM: 'd'},
	{Type: SymPDF417, Name: "PDF417", SymID: 'r', AIM: 'L'},
}

// Unknown is returned when a symbology cannot be identified.
var Unknown = Symbology{Type: SymUnknown, Name: "Unknown"}

// Symbologies returns the supported symbologies.
func Symbologies() []Symbology {
	out := make([]Symbology, len(symbologies))
	copy(out, symbologies)
	return out
}

// LookupType finds a symbology by type number.
func LookupType(symType int) (Symbology, bool) {
	for _, s := range symbologies {
		if s.Type == symType {
			return s, true
		}
	}
	return Unknown, false
}

// LookupAIM resolves an AIM code/modifier pair. EAN-8 and EAN-13 share
// code 'E' and are told apart by modifier '4', as are GS1-128 and Code128
// by modifier '1'.
func LookupAIM(code, modifier byte) (Symbology, bool) {
	switch {
	case code == 'E' && modifier == '4':
		return LookupType(SymEAN8)
	case code == 'E':
		return LookupType(SymEAN13)
	case code == 'C' && modifier == '1':
		return LookupType(SymGS1128)
	case code == 'C':
		return LookupType(SymCode128)
	}
	for _, s := range symbologies {
		if s.AIM == code {
			return s, true
		}
	}
	return Unknown, false
}

// ParseAIM splits a "]cm" AIM prefix off data. ok is false when data
// carries no prefix, in which case payload is data unchanged.
func ParseAIM(data []byte) (sym Symbology, modifier byte, payload []byte, ok bool) {
	if len(data) < 3 || data[0] != ']' {
		return Unknown, 0, data, false
	}
	sym, found := LookupAIM(data[1], data[2])
	if !found {
		return Unknown, 0, data, false
	}
	return sym, data[2], bytes.Clone(data[3:]), true
}
