package view

// Layout declares the elements a page is built from.
type Layout struct {
	Forms  []FormSpec
	Bars   []ElementID
	Labels []ElementID
}

// FormSpec declares one form.
type FormSpec struct {
	ID        ElementID
	Fields    []FieldSpec
	Controls  []ControlSpec
	Submitter ElementID
}

// FieldSpec declares one form field.
type FieldSpec struct {
	ID       ElementID
	Required bool
}

// ControlSpec declares one control and whether it starts disabled.
type ControlSpec struct {
	ID       ElementID
	Disabled bool
}

// Element ids of the patcher page.
const (
	LabelUpdateStatus ElementID = "update-status"

	FormInstall          ElementID = "install-form"
	ControlInstallSubmit ElementID = "install-submit"
	BarInstallNet        ElementID = "install-net-bar"
	LabelInstallNet      ElementID = "install-net-text"
	BarInstallDisk       ElementID = "install-disk-bar"
	LabelInstallDisk     ElementID = "install-disk-text"
	LabelInstallDetail   ElementID = "install-detail"
	LabelInstallMessage  ElementID = "install-message"

	FormCreatePatch          ElementID = "create-patch-form"
	FieldOutDir              ElementID = "out-dir"
	FieldNewDir              ElementID = "new-dir"
	FieldOldDir              ElementID = "old-dir"
	ControlPickOutDir        ElementID = "pick-out-dir"
	ControlPickNewDir        ElementID = "pick-new-dir"
	ControlPickOldDir        ElementID = "pick-old-dir"
	ControlCreatePatchSubmit ElementID = "create-patch-submit"
	BarCreatePatch           ElementID = "create-patch-bar"
	LabelCreatePatchCount    ElementID = "create-patch-text"
	LabelCreatePatchPath     ElementID = "create-patch-path"
	LabelCreatePatchMessage  ElementID = "create-patch-message"
)

// DefaultLayout is the patcher page: an update status line, an install form
// locked until the update check reports ready, and the patch creation form.
func DefaultLayout() Layout {
	return Layout{
		Forms: []FormSpec{
			{
				ID: FormInstall,
				Controls: []ControlSpec{
					{ID: ControlInstallSubmit, Disabled: true},
				},
				Submitter: ControlInstallSubmit,
			},
			{
				ID: FormCreatePatch,
				Fields: []FieldSpec{
					{ID: FieldOutDir, Required: true},
					{ID: FieldNewDir, Required: true},
					{ID: FieldOldDir},
				},
				Controls: []ControlSpec{
					{ID: ControlPickOutDir},
					{ID: ControlPickNewDir},
					{ID: ControlPickOldDir},
					{ID: ControlCreatePatchSubmit},
				},
				Submitter: ControlCreatePatchSubmit,
			},
		},
		Bars: []ElementID{
			BarInstallNet,
			BarInstallDisk,
			BarCreatePatch,
		},
		Labels: []ElementID{
			LabelUpdateStatus,
			LabelInstallNet,
			LabelInstallDisk,
			LabelInstallDetail,
			LabelInstallMessage,
			LabelCreatePatchCount,
			LabelCreatePatchPath,
			LabelCreatePatchMessage,
		},
	}
}
