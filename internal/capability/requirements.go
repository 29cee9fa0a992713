package capability

import "github.com/HsiangNianian/aieda-bridge/internal/protocol"

// Host method names used by the EasyEDA adapter.
const (
	ComponentGetAll     = "sch_PrimitiveComponent.getAll"
	ComponentGetAllIDs  = "sch_PrimitiveComponent.getAllPrimitiveId"
	ComponentGet        = "sch_PrimitiveComponent.get"
	ComponentCreate     = "sch_PrimitiveComponent.create"
	ComponentModify     = "sch_PrimitiveComponent.modify"
	ComponentDelete     = "sch_PrimitiveComponent.delete"
	ComponentCreateFlag = "sch_PrimitiveComponent.createNetFlag"
	ComponentCreatePort = "sch_PrimitiveComponent.createNetPort"
	WireGetAll          = "sch_PrimitiveWire.getAll"
	WireCreate          = "sch_PrimitiveWire.create"
	WireModify          = "sch_PrimitiveWire.modify"
	WireDelete          = "sch_PrimitiveWire.delete"
	PolygonGetAll       = "sch_PrimitivePolygon.getAll"
	TextGetAll          = "sch_PrimitiveText.getAll"
	TextGetAllIDs       = "sch_PrimitiveText.getAllPrimitiveId"
	TextGet             = "sch_PrimitiveText.get"
	TextModify          = "sch_PrimitiveText.modify"
	SelectGetAll        = "sch_SelectControl.getAllSelectedPrimitives"
	DocumentGetSource   = "sys_FileManager.getDocumentSource"
	AccountGetUserInfo  = "sys_Environment.getUserInfo"
	LibraryDeviceSearch = "lib_Device.search"
)

// RuntimeMinimum must be fully present for any read to work.
var RuntimeMinimum = []string{
	ComponentGetAll,
	WireGetAll,
}

// ReadOptional enables extra read fields when present.
var ReadOptional = []string{
	ComponentGetAllIDs,
	ComponentGet,
	PolygonGetAll,
	TextGetAll,
	TextGetAllIDs,
	TextGet,
	SelectGetAll,
	DocumentGetSource,
	AccountGetUserInfo,
	LibraryDeviceSearch,
}

// OperationRequirements lists the host methods each schema operation calls.
var OperationRequirements = map[protocol.OpKind][]string{
	protocol.OpCreateComponent: {ComponentCreate},
	protocol.OpModifyComponent: {ComponentModify},
	protocol.OpDeleteComponent: {ComponentDelete},
	protocol.OpCreateWire:      {WireCreate},
	protocol.OpModifyWire:      {WireModify},
	protocol.OpDeleteWire:      {WireDelete},
	protocol.OpModifyText:      {TextModify},
	protocol.OpCreateNetFlag:   {ComponentCreateFlag},
	protocol.OpCreateNetPort:   {ComponentCreatePort},
	protocol.OpSearchComponent: {LibraryDeviceSearch},
}
