package mktnft

import (
	"time"

	"github.com/KarpelesLab/xuid"
	"github.com/TheQuantumChronicle/libmarket/mktintf"
)

type Attribute struct {
	TraitType   string `json:"trait_type,omitempty"`
	DisplayType string `json:"display_type,omitempty"`
	Value       any    `json:"value"`
}

// Record is the immutable descriptive metadata of one token, as served by
// the content-addressed store. It deliberately carries no owner: ownership
// changes hands, metadata does not, so the current owner is tracked per
// token in the state store instead.
type Record struct {
	Id          *xuid.XUID   `json:"id,omitempty" gorm:"primaryKey"`
	TokenId     string       `json:"token_id" gorm:"index:TokenId,unique"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Image       string       `json:"image,omitempty"`
	ExternalUrl string       `json:"external_url,omitempty"`
	Attributes  []*Attribute `json:"attributes" gorm:"serializer:json"`
	Created     time.Time    `gorm:"autoCreateTime"`
	Updated     time.Time    `gorm:"autoUpdateTime"`
}

func InitEnv(e mktintf.Env) {
	e.AutoMigrate(&Record{})
}
