// Package skull is the animatronic skull built on the event hive.
//
// Each capability is an actor behavior: audio detection, speech-to-text,
// chatbot, command checking, text-to-speech, jaw movement and host power
// control. The ConversationEngine strings them together by publishing one
// request at a time and advancing on CONVERSATION_ACTION_FINISHED; no actor
// calls another directly.
//
// Every piece of hardware or cloud service sits behind a small interface
// (Synthesizer, Microphone, Servo, ...) with a real implementation and a
// Test implementation. Build picks between them from config.Settings:
//
//	queue := eventhive.NewQueue()
//	sys, err := skull.Build(settings, queue, skull.Deps{Logger: logger})
//	if err != nil {
//	    return err // *config.ModeError for an unknown backend
//	}
//	hive := eventhive.NewHive(queue)
//	sys.Register(hive)
//	_ = sys.Arm()
//	_ = hive.Start(ctx)
package skull
