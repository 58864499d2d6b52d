package bot

// User-visible reply texts. These are part of the bot's observable
// behavior; tests match against them verbatim.
const (
	msgAdminOnly     = "❌ Only admin can use this command!"
	msgBannedUser    = "❌ You are banned from using this bot."
	msgInvalidUserID = "❌ Invalid user ID! Please provide a valid number."

	msgWelcomePremium = "🎉 Welcome Premium Member! 💎\n\n" +
		"You have access to all premium features.\n" +
		"You'll receive all admin broadcasts automatically!"
	msgWelcome = "👋 Welcome to the bot!\n\n" +
		"💎 Buy VIP Premium to access exclusive content and features!\n" +
		"Premium members get instant access to all admin broadcasts."
	msgPremiumInfo = "💎 VIP Premium Membership\n\n" +
		"Contact admin to purchase premium membership:\n" +
		"👤 Admin: @Myhero2k\n\n" +
		"Premium Benefits:\n" +
		"✅ Instant access to all broadcasts\n" +
		"✅ Exclusive premium channels\n" +
		"✅ Priority support"

	msgBroadcastActivated = "📢 All Broadcast Mode Activated!\n\n" +
		"Send your messages now (text, photos, videos, documents).\n" +
		"When you're done, send /done to broadcast all messages to everyone."
	msgNoSession     = "❌ No active broadcast session! Use /allbroadcast first."
	msgNoMessages    = "❌ No messages to broadcast! Send some messages first."
	msgNoActiveUsers = "❌ No active users to broadcast to!"

	msgWaitForReply = "🚀 Message sent to admin, wait for reply!"

	headerAllBroadcast     = "📢 Admin Broadcast:\n\n"
	headerPremiumBroadcast = "📢 Premium Broadcast:\n\n"
	headerAdminReply       = "💬 Admin Reply:\n\n"

	buttonBuyPremium   = "💎 Buy VIP Premium"
	callbackBuyPremium = "buy_premium"

	listDateFormat = "2006-01-02 15:04"
)
