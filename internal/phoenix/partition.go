package phoenix

import "fmt"

const (
	protectedDir = "PROTECTED"
	generalDir   = "GENERAL"
	rawDir       = "raw"
	processedDir = "processed"
)

// Partition is one protection level and processing stage combination.
type Partition struct {
	Protected bool
	Raw       bool
}

// Partitions lists the four combinations in crawl order.
var Partitions = []Partition{
	{Protected: true, Raw: true},
	{Protected: true, Raw: false},
	{Protected: false, Raw: true},
	{Protected: false, Raw: false},
}

// Expected reports whether a partition is a valid data category. GENERAL raw
// never holds data, so its absence is not worth mentioning.
func (p Partition) Expected() bool {
	return p.Protected || !p.Raw
}

func (p Partition) ProtectionDir() string {
	if p.Protected {
		return protectedDir
	}
	return generalDir
}

func (p Partition) StageDir() string {
	if p.Raw {
		return rawDir
	}
	return processedDir
}

func (p Partition) String() string {
	return fmt.Sprintf("%s/%s", p.ProtectionDir(), p.StageDir())
}
