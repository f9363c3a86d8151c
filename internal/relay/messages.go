package relay

// User-facing texts. They are sent with the Telegram "Markdown" parse mode.
const (
	msgWelcome = "👋 *Welcome to your Facebook Auto-Poster!*\n\n" +
		"I can help you upload your music videos directly to your Facebook Page.\n\n" +
		"*How to use:*\n" +
		"1. Click the 📎 (Paperclip) icon below.\n" +
		"2. Select your video file.\n" +
		"3. Add a caption (optional).\n" +
		"4. Send it! 🚀\n\n" +
		"I'll handle the rest."

	msgSendVideo = "Please send me a *video file* to upload. 🎥"

	msgStarted = "📥 *Video Received!*\n\n" +
		"I'm working on uploading it to Facebook right now. This might take a moment... ⏳"

	msgSuccess = "✅ *Success!*\n\nYour video has been posted to your Facebook Page. 🎉"

	msgFailure = "❌ *Error*\n\nSomething went wrong while uploading your video. Please try again."
)
