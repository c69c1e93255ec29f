package diag

const (
	// Files.
	CodeFileDoesNotExist = "E_FILE_DOES_NOT_EXIST"
	CodeIORead           = "E_IO_READ"

	// Legacy worlds and savegames.
	CodeWorldFileInvalid       = "E_WORLD_FILE_INVALID"
	CodeSaveFileInvalid        = "E_SAVE_FILE_INVALID"
	CodeWorldVersionOld        = "E_WORLD_FILE_VERSION_OLD"
	CodeWorldVersionTooRecent  = "E_WORLD_FILE_VERSION_TOO_RECENT"
	CodeSaveVersionOld         = "E_SAVE_VERSION_OLD"
	CodeSaveVersionTooRecent   = "E_SAVE_VERSION_TOO_RECENT"
	CodeWorldPasswordProtected = "E_WORLD_PASSWORD_PROTECTED"
	CodeWorldLocked            = "E_WORLD_LOCKED"
	CodeWorldDecryptWriteProt  = "E_WORLD_DECRYPT_WRITE_PROTECTED"
	CodeBoardDummy             = "E_BOARD_DUMMY"
	CodeWorldRobotMissing      = "E_WORLD_ROBOT_MISSING"
	CodeBoardRobotCorrupt      = "E_BOARD_ROBOT_CORRUPT"
	CodeRobotSlotExhausted     = "E_ROBOT_SLOT_EXHAUSTED"

	// Regions.
	CodeMZMDoesNotExist     = "E_MZM_DOES_NOT_EXIST"
	CodeMZMFileInvalid      = "E_MZM_FILE_INVALID"
	CodeMZMVersionTooRecent = "E_MZM_FILE_VERSION_TOO_RECENT"
	CodeMZMFromSavegame     = "E_MZM_FILE_FROM_SAVEGAME"
	CodeMZMRobotCorrupt     = "E_MZM_ROBOT_CORRUPT"
)

var knownCodes = map[string]struct{}{
	CodeFileDoesNotExist:       {},
	CodeIORead:                 {},
	CodeWorldFileInvalid:       {},
	CodeSaveFileInvalid:        {},
	CodeWorldVersionOld:        {},
	CodeWorldVersionTooRecent:  {},
	CodeSaveVersionOld:         {},
	CodeSaveVersionTooRecent:   {},
	CodeWorldPasswordProtected: {},
	CodeWorldLocked:            {},
	CodeWorldDecryptWriteProt:  {},
	CodeBoardDummy:             {},
	CodeWorldRobotMissing:      {},
	CodeBoardRobotCorrupt:      {},
	CodeRobotSlotExhausted:     {},
	CodeMZMDoesNotExist:        {},
	CodeMZMFileInvalid:         {},
	CodeMZMVersionTooRecent:    {},
	CodeMZMFromSavegame:        {},
	CodeMZMRobotCorrupt:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
