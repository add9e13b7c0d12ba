package service

import "github.com/raphaelgruber/legalchat/internal/models"

// localized holds one canned reply per script family.
type localized struct {
	primary, secondary string
}

func (l localized) in(lang models.LanguageTag) string {
	if lang == models.LanguageSecondary {
		return l.secondary
	}
	return l.primary
}

var (
	msgChitchatFallback = localized{
		primary:   "Hello! I'm LawYaar, your legal assistant 😊 How can I help you with legal questions today?",
		secondary: "السلام علیکم! میں LawYaar ہوں، آپ کا قانونی معاون 😊 میں آپ کی کیسے مدد کر سکتا ہوں؟",
	}

	msgDecline = localized{
		primary: "I apologize! 😊 I'm LawYaar - a legal assistant specializing in Pakistani law.\n\n" +
			"I can only help with legal questions such as:\n" +
			"• Bail and sentencing matters\n" +
			"• Supreme Court case law\n" +
			"• Legal rights and procedures\n\n" +
			"Please ask me a legal question! ⚖️",
		secondary: "معذرت! 😊 میں LawYaar ہوں - پاکستان کے قانونی معاملات میں مہارت رکھنے والا معاون۔\n" +
			"میں صرف قانونی سوالات کا جواب دے سکتا ہوں جیسے:\n" +
			"• ضمانت اور سزا\n" +
			"• سپریم کورٹ کے فیصلے\n" +
			"• قانونی حقوق اور طریقہ کار\n\n" +
			"براہ کرم کوئی قانونی سوال پوچھیں! ⚖️",
	}

	msgOfferDeclined = localized{
		primary: "No problem at all! 😊\n\n" +
			"If you have any other legal questions, feel free to ask. I'm here to help! ⚖️",
		secondary: "ٹھیک ہے، کوئی بات نہیں! 😊\n\n" +
			"اگر آپ کو کوئی اور قانونی سوال ہو تو بے جھجھک پوچھیں۔ میں یہاں آپ کی مدد کے لیے ہوں! ⚖️",
	}

	msgDelivery = localized{
		primary:   "Great! Here is your detailed report with all case citations and links. 📄",
		secondary: "بہترین! یہ رہی آپ کی تفصیلی رپورٹ، جو تمام کیسز کی تفصیلات، حوالہ جات اور لنکس پر مشتمل ہے۔ 📄",
	}

	msgDeliveryFailed = localized{
		primary:   "I couldn't prepare the document right now, so here are the full findings as text:",
		secondary: "معذرت! دستاویز ابھی تیار نہیں ہو سکی، اس لیے مکمل نتائج یہاں تحریری شکل میں ہیں:",
	}

	msgOfferPrompt = localized{
		primary: "If you'd like a detailed report with all case citations and links, please reply with 'yes' or 'haan'. " +
			"I'll send you a comprehensive document.",
		secondary: "اگر آپ مکمل تفصیلی رپورٹ چاہتے ہیں جس میں تمام کیسز کی تفصیلات اور لنکس ہوں، تو براہ کرم 'ہاں' یا 'جی' بھیجیں۔ " +
			"میں آپ کو ایک تفصیلی دستاویز بھیج دوں گا۔",
	}

	msgApology = localized{
		primary: "I apologize! 😔 I'm having trouble researching your question.\n\n" +
			"Please try:\n" +
			"• Rephrasing your question\n" +
			"• Asking again in a few moments\n\n" +
			"Thank you for your patience! 🙏",
		secondary: "معذرت! 😔 مجھے آپ کے سوال کا جواب دینے میں دشواری ہو رہی ہے۔\n\n" +
			"براہ کرم:\n" +
			"• اپنا سوال دوبارہ لکھیں\n" +
			"• یا کچھ دیر بعد کوشش کریں\n\n" +
			"شکریہ! 🙏",
	}

	msgTryAgain = localized{
		primary:   "Sorry, I couldn't process that message. Please send it again. 🙏",
		secondary: "معذرت، آپ کا پیغام مکمل نہیں ہو سکا۔ براہ کرم دوبارہ بھیجیں۔ 🙏",
	}

	msgVoiceFallbackLead = localized{
		primary:   "Here's what I found from the legal research:",
		secondary: "قانونی تحقیق سے مجھے یہ معلوم ہوا:",
	}
)
