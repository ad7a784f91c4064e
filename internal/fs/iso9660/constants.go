package iso9660

// ISO 9660 constants (ECMA-119)
const (
	// Logical sector size for CD-ROM media
	SectorSize = 2048

	// Volume descriptors start after the 16 sector system area
	DescriptorOffset = 16 * SectorSize

	StandardID = "CD001"

	// Volume descriptor types
	DescriptorBoot          = 0
	DescriptorPrimary       = 1
	DescriptorSupplementary = 2
	DescriptorPartition     = 3
	DescriptorTerminator    = 255

	// Primary volume descriptor field offsets
	pvdVolumeIDOffset   = 40
	pvdVolumeIDLength   = 32
	pvdVolumeSizeOffset = 80
	pvdBlockSizeOffset  = 128
	pvdRootRecordOffset = 156
	pvdRootRecordLength = 34

	// File flags
	FlagHidden      = 0x01
	FlagDirectory   = 0x02
	FlagAssociated  = 0x04
	FlagRecord      = 0x08
	FlagProtection  = 0x10
	FlagMultiExtent = 0x80

	// Fixed part of a directory record, identifier length byte included
	minRecordLength = 33

	// Upper bound on volume descriptors scanned before giving up
	maxDescriptors = 64

	// Upper bound on a single directory extent
	maxDirectorySize = 16 << 20
)

// SUSP framing signatures handled by the scanner instead of the Rock Ridge dispatcher
const (
	sigSharing      = "SP"
	sigContinuation = "CE"
	sigPadding      = "PD"
	sigTerminator   = "ST"
	sigExtReference = "ER"
	sigExtSelector  = "ES"
)
