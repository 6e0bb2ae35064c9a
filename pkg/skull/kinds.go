package skull

import "github.com/randalmurphal/eventhive/pkg/eventhive"

// Event kinds. The strings are the wire names shared with the rest of the
// skull tooling and must not change.
const (
	KindListen                eventhive.Kind = "LISTEN_EVENT"
	KindMovement              eventhive.Kind = "MOVEMENT_EVENT"
	KindDetect                eventhive.Kind = "DETECT_EVENT"
	KindSTT                   eventhive.Kind = "STT_Event"
	KindSTTDone               eventhive.Kind = "STT_Done_Event"
	KindTTS                   eventhive.Kind = "TTS_Event"
	KindBot                   eventhive.Kind = "Bot_Event"
	KindBotDone               eventhive.Kind = "Bot_Done_Event"
	KindCommandCheck          eventhive.Kind = "Command_Check_Event"
	KindCommandCheckDone      eventhive.Kind = "Command_Check_Done_Event"
	KindConversationDone      eventhive.Kind = "Conversation_Done_Event"
	KindHardware              eventhive.Kind = "Hardware_Event"
	KindAudioDetectController eventhive.Kind = "Audio_Detect_Controller_Event"
)

// Commands (labels[0]).
const (
	CmdHumanDetected      = "HUMAN_DETECTED"
	CmdScanModeOn         = "SCAN_MODE_ON"
	CmdScanModeOff        = "SCAN_MODE_OFF"
	CmdGenerateTTS        = "GENERATE_TTS"
	CmdRecordInferSpeech  = "RECORD_INFER_SPEECH"
	CmdSTTFinished        = "STT_FINISHED"
	CmdGetBotResponse     = "GET_BOT_RESPONSE"
	CmdBotFinished        = "BOT_FINISHED"
	CmdCheckVoiceCommands = "CHECK_VOICE_COMMANDS"
	CmdCommandFound       = "COMMAND_FOUND"
	CmdJawTTSAudio        = "JAW_TTS_AUDIO"
	CmdShutdown           = "SHUTDOWN"
	CmdReboot             = "REBOOT"
	CmdActionFinished     = "CONVERSATION_ACTION_FINISHED"
	CmdConverse           = "CONVERSE"
)

// Voice command results carried by COMMAND_FOUND.
const (
	CommandOverride = "override_command"
	CommandShutdown = "shutdown_command"
	CommandReboot   = "reboot_command"
	CommandTest     = "test_command"
	CommandNone     = "no_command"
)

// emit publishes an event caused by parent. A nil parent starts a new
// correlation chain.
func emit(p eventhive.Producer, parent *eventhive.Event, kind eventhive.Kind, priority int, labels ...any) error {
	return p.Produce(eventhive.NewFromParent(parent, kind, priority, labels...))
}

// finished publishes the completion that advances the conversation.
func finished(p eventhive.Producer, parent *eventhive.Event, priority int) error {
	return emit(p, parent, KindConversationDone, priority, CmdActionFinished)
}
