package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgOk            = `Ok!`
	MsgUnexpectedErr = `Unexpected error: %s`
	MsgStartPrompt   = "📸 Send a photo of the item you want to sell and I'll write the listing for you."
	MsgResetDone     = "🔄 Started over. Send a new photo when you're ready."
	MsgVersionInfo   = "Version: %s\nBuilt: %s"
	MsgSendPhotoHelp = "Send a photo of the item, or use /reset to start over."
)

// =============================================================================
// Admin command messages
// =============================================================================

const (
	MsgAdminUsage           = "Usage:\n`/admin users add <user_id>`\n`/admin users remove <user_id>`\n`/admin users list`"
	MsgAdminUserAddUsage    = "Usage: `/admin users add <user_id>`"
	MsgAdminUserRemoveUsage = "Usage: `/admin users remove <user_id>`"
	MsgAdminUserInvalidID   = "Invalid user ID. Give a number."
	MsgAdminUserAdded       = "✅ User `%d` added."
	MsgAdminUserRemoved     = "🗑 User `%d` removed."
	MsgAdminNoUsers         = "No allowed users."
	MsgAdminAllowedUsers    = "*Allowed users:*\n"
	MsgAdminUserLine        = "• `%d` (added %s)\n"
)

// =============================================================================
// Photo messages
// =============================================================================

const (
	MsgImageDownloadFailed = "Couldn't download the photo. Please send it again."
	MsgStatusPrefix        = "⏳ "
)

// =============================================================================
// Listing details view
// =============================================================================

const (
	MsgDetailsCategory     = "Category: %s"
	MsgDetailsPrice        = "Price: %s"
	MsgDetailsMarketplaces = "Sell on: %s"
	MsgDraftUpdated        = "✅ Listing updated."
	MsgEditDraftUsage      = "Usage:\n`/details title <text>`\n`/details description <text>`\n`/details price <text>`"
)

// =============================================================================
// Edit view
// =============================================================================

const (
	MsgEditPrompt  = "🪄 *AI Magic Edit*\nTap a quick edit or type your own instruction, e.g. _Remove the person in the background_."
	MsgEditApplied = "✨ Applied: %s"
)

// =============================================================================
// Generate view
// =============================================================================

const (
	MsgGenerateTitle   = "🎨 *Pro Studio Generation*"
	MsgGenerateModel   = "Model: %s"
	MsgGenerateLoc     = "Location: %s"
	MsgGenerateStyle   = "Style: %s"
	MsgGenerateRes     = "Resolution: %s"
	MsgGenerateCustom  = "Custom details: %s"
	MsgGenerateHint    = "Tap an option to change it. Type a message to set custom details."
	MsgGenerateDone    = "📷 Generated %s photo."
	MsgCustomDetailSet = "✅ Custom details saved."
)

// Button labels
const (
	BtnDetails       = "📝 Details"
	BtnEdit          = "🪄 Edit"
	BtnGenerate      = "🎨 Generate"
	BtnDownload      = "⬇️ Download photo"
	BtnReset         = "🔄 Start over"
	BtnGenerateGo    = "✨ Generate"
	BtnClearCustom   = "✖️ Clear custom details"
	BtnActivePrefix  = "• "
	BtnModelPrefix   = "👤 "
	BtnLocPrefix     = "📍 "
	BtnStylePrefix   = "🎭 "
	BtnResPrefix     = "🖼 "
	DownloadFileName = "sellsmart-listing"
)
